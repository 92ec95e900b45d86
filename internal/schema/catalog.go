package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var defaultCatalog []byte

// Source names used in the catalog.
const (
	SourceServiceRequests = "csb"
	SourceCrime           = "crime"
	SourceParcels         = "parcels"
	SourceNeighborhoods   = "neighborhoods"
	SourceTracts          = "tracts"
	SourceFoodAtlas       = "food_atlas"
	SourceACS             = "acs"
	SourceSpending        = "arpa"
)

// Schema is the set of field rules for one source.
type Schema map[string]Rule

// Catalog maps a source name to its schema.
type Catalog map[string]Schema

// Default returns the catalog compiled into the binary.
func Default() (Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path. An empty path returns the default catalog.
// Sources present in the file replace the defaults wholesale; other sources
// keep their defaults.
func Load(path string) (Catalog, error) {
	cat, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for source, s := range override {
		cat[source] = s
	}
	return cat, nil
}

// Parse decodes a YAML catalog and checks that every rule can match something.
func Parse(data []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}
	for source, s := range cat {
		for field, r := range s {
			if len(r.Exact) == 0 && len(r.Fallback) == 0 {
				return nil, fmt.Errorf("schema %s.%s: rule has no exact names or fallbacks", source, field)
			}
		}
	}
	return cat, nil
}

// Schema returns the schema for source, or an error naming the missing source.
func (c Catalog) Schema(source string) (Schema, error) {
	s, ok := c[source]
	if !ok {
		return nil, fmt.Errorf("schema catalog has no source %q", source)
	}
	return s, nil
}

// Resolve infers every field of the schema against header.
func (s Schema) Resolve(header []string) Columns {
	cols := make(Columns, len(s))
	for field, rule := range s {
		cols[field] = Infer(header, rule)
	}
	return cols
}

// Columns maps semantic field names to resolved column names.
type Columns map[string]string

// Has reports whether field resolved to a column.
func (c Columns) Has(field string) bool { return c[field] != NotFound }

// Column returns the resolved column name for field, or NotFound.
func (c Columns) Column(field string) string { return c[field] }

// Value returns the field's value from a row keyed by column name. An
// unresolved field yields "".
func (c Columns) Value(row map[string]string, field string) string {
	col := c[field]
	if col == NotFound {
		return ""
	}
	return row[col]
}

// LogAttrs returns field=column pairs in field order for structured logging.
func (c Columns) LogAttrs() []any {
	fields := make([]string, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	attrs := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		col := c[f]
		if col == NotFound {
			col = "-"
		}
		attrs = append(attrs, f, col)
	}
	return attrs
}
