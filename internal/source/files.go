package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFiles walks dir and returns every regular file whose extension matches
// one of exts (case-insensitively, with the leading dot), sorted by path. A
// missing dir yields an error wrapping fs.ErrNotExist.
func FindFiles(dir string, exts ...string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", dir)
	}

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	var out []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && want[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

// FirstFile returns the first file FindFiles reports, or an error wrapping
// fs.ErrNotExist when there is none.
func FirstFile(dir string, exts ...string) (string, error) {
	files, err := FindFiles(dir, exts...)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no %s files under %s: %w", strings.Join(exts, "/"), dir, fs.ErrNotExist)
	}
	return files[0], nil
}
