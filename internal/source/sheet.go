package source

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadSheet reads one worksheet of an .xlsx workbook. The first row is the
// header; cells come back as their displayed text.
func ReadSheet(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if !slices.Contains(f.GetSheetList(), sheet) {
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheet)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	t := &Table{}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if t.Header == nil {
			t.Header = make([]string, len(cols))
			for i, c := range cols {
				t.Header[i] = strings.TrimSpace(c)
			}
			continue
		}
		row := make(Row, len(t.Header))
		for i, h := range t.Header {
			if i < len(cols) {
				row[h] = cols[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return t, nil
}
