package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Feed is a GTFS feed assembled from a zip archive and/or an extracted
// directory. Files present in the archive win; missing ones are looked up in
// the directory.
type Feed struct {
	layers []fs.FS
	zip    *zip.ReadCloser
}

// OpenFeed opens zipPath and dir, either of which may be absent. It fails
// with fs.ErrNotExist only when neither exists.
func OpenFeed(zipPath, dir string) (*Feed, error) {
	f := &Feed{}
	if zr, err := zip.OpenReader(zipPath); err == nil {
		f.zip = zr
		f.layers = append(f.layers, zr)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", zipPath, err)
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		f.layers = append(f.layers, os.DirFS(dir))
	}
	if len(f.layers) == 0 {
		return nil, fmt.Errorf("no GTFS feed at %s or %s: %w", zipPath, dir, fs.ErrNotExist)
	}
	return f, nil
}

// Has reports whether the feed contains name.
func (f *Feed) Has(name string) bool {
	for _, l := range f.layers {
		if _, err := fs.Stat(l, name); err == nil {
			return true
		}
	}
	return false
}

// Scan streams the rows of a feed file. A missing file yields an error
// wrapping fs.ErrNotExist.
func (f *Feed) Scan(name string, fn func(Row) error) error {
	for _, l := range f.layers {
		file, err := l.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer file.Close()
		if err := ScanCSV(file, func(_ []string, row Row) error { return fn(row) }); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

// Close releases the archive, if any.
func (f *Feed) Close() error {
	if f.zip != nil {
		return f.zip.Close()
	}
	return nil
}
