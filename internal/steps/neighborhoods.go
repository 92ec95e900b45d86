package steps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

const neighborhoodsDir = "neighborhoods"

// Neighborhoods converts the neighborhood boundary shapefile to GeoJSON.
type Neighborhoods struct{}

func (Neighborhoods) Name() string  { return "neighborhoods" }
func (Neighborhoods) Title() string { return "Neighborhoods" }

func (Neighborhoods) Run(_ context.Context, rc *pipeline.RunContext) error {
	layer, err := readShapefile(rc, rc.Raw(neighborhoodsDir))
	if err != nil {
		return err
	}

	var fc featureCollection
	for _, f := range layer.Features {
		fc.add(f.Geometry, f.Properties)
	}
	return fc.write(rc, "neighborhoods.geojson")
}

// LoadDirectory builds the neighborhood directory from the boundary
// shapefile under rawDir. Without a shapefile the directory still resolves
// numeric codes.
func LoadDirectory(rawDir string, catalog schema.Catalog) (*domain.Directory, error) {
	dir := domain.NewDirectory()

	path, err := source.FirstFile(filepath.Join(rawDir, neighborhoodsDir), ".shp")
	if errors.Is(err, fs.ErrNotExist) {
		return dir, nil
	}
	if err != nil {
		return nil, err
	}
	layer, err := source.ReadShapefile(path)
	if err != nil {
		return nil, err
	}

	s, err := catalog.Schema(schema.SourceNeighborhoods)
	if err != nil {
		return nil, err
	}
	cols := s.Resolve(layer.Fields)
	if err := requireColumn(schema.SourceNeighborhoods, cols.Has("id"), "id"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, f := range layer.Features {
		id, ok := domain.ParseNeighborhoodID(cols.Value(f.Attrs, "id"))
		if !ok {
			continue
		}
		dir.Add(id, cols.Value(f.Attrs, "name"))
	}
	return dir, nil
}
