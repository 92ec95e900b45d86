// Package source reads the raw open-data inputs: delimited text, dBASE-backed
// shapefiles, Excel workbooks and GTFS feeds. Readers are tolerant of the
// quirks found in municipal exports (byte-order marks, stray bytes, ragged
// rows) and hand rows to callers as header-keyed maps.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Row is one record keyed by column name.
type Row map[string]string

// Table is a fully materialized delimited file.
type Table struct {
	Header []string
	Rows   []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ScanCSV streams rows of r to fn. A leading BOM is dropped and invalid UTF-8
// is replaced with U+FFFD. Short rows leave trailing columns empty and extra
// fields are ignored. Returning an error from fn stops the scan.
func ScanCSV(r io.Reader, fn func(header []string, row Row) error) error {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	rec, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	header := make([]string, len(rec))
	for i, h := range rec {
		header[i] = strings.TrimSpace(h)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		if err := fn(header, row); err != nil {
			return err
		}
	}
}

// ReadCSV materializes every row of r.
func ReadCSV(r io.Reader) (*Table, error) {
	t := &Table{}
	err := ScanCSV(r, func(header []string, row Row) error {
		if t.Header == nil {
			t.Header = header
		}
		t.Rows = append(t.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadCSVFiles concatenates the rows of several files. The header is the
// union of the files' headers in first-seen order.
func ReadCSVFiles(paths []string) (*Table, error) {
	out := &Table{}
	seen := make(map[string]bool)
	for _, p := range paths {
		t, err := readCSVFile(p)
		if err != nil {
			return nil, err
		}
		for _, h := range t.Header {
			if !seen[h] {
				seen[h] = true
				out.Header = append(out.Header, h)
			}
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

func readCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
