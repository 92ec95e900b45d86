package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NeighborhoodID is the zero-padded two-digit neighborhood code ("05", "79").
type NeighborhoodID string

// ParseNeighborhoodID normalizes a numeric neighborhood code. It accepts
// "5", "05", " 5 " and "5.0". Non-numeric and non-positive input is rejected.
func ParseNeighborhoodID(s string) (NeighborhoodID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return "", false
		}
	}
	n := ParseIntOr(s, -1)
	if n <= 0 {
		return "", false
	}
	return NeighborhoodID(fmt.Sprintf("%02d", n)), true
}

// Directory resolves neighborhood references to IDs. The zero value resolves
// numeric codes only.
type Directory struct {
	byName map[string]NeighborhoodID
	names  map[NeighborhoodID]string
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byName: make(map[string]NeighborhoodID),
		names:  make(map[NeighborhoodID]string),
	}
}

// Add registers a neighborhood name for an ID.
func (d *Directory) Add(id NeighborhoodID, name string) {
	if d.byName == nil {
		d.byName = make(map[string]NeighborhoodID)
		d.names = make(map[NeighborhoodID]string)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	d.byName[nameKey(name)] = id
	if _, ok := d.names[id]; !ok {
		d.names[id] = name
	}
}

// Len returns the number of registered names.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byName)
}

// Resolve maps a raw neighborhood reference (code or name) to an ID.
func (d *Directory) Resolve(raw string) (NeighborhoodID, bool) {
	if id, ok := ParseNeighborhoodID(raw); ok {
		return id, true
	}
	if d == nil || d.byName == nil {
		return "", false
	}
	id, ok := d.byName[nameKey(raw)]
	return id, ok
}

// Name returns the registered name for id, or fallback when unknown.
func (d *Directory) Name(id NeighborhoodID, fallback string) string {
	if d != nil && d.names != nil {
		if name, ok := d.names[id]; ok {
			return name
		}
	}
	return fallback
}

func nameKey(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(norm.NFKC.String(name)), " "))
}
