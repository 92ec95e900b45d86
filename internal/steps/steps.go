// Package steps holds the batch steps of the civic data pipeline. Each step
// reads one family of raw inputs and writes the dashboard artifacts derived
// from it.
package steps

import (
	"fmt"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// stlCountyFIPS prefixes every census GEOID inside the City of St. Louis.
const stlCountyFIPS = "29510"

// Default returns every step in run order.
func Default() []pipeline.Step {
	return []pipeline.Step{
		Neighborhoods{},
		Transit{},
		FoodDeserts{},
		ServiceRequests{},
		Crime{},
		Spending{},
		Demographics{},
		Vacancies{},
		Housing{},
	}
}

// readCSVDir reads every CSV file under dir as one table. A missing
// directory or one without CSV files is a skip.
func readCSVDir(rc *pipeline.RunContext, dir string) (*source.Table, error) {
	files, err := source.FindFiles(dir, ".csv")
	if err != nil {
		return nil, pipeline.SkipIfMissing(err)
	}
	if len(files) == 0 {
		return nil, pipeline.Skip("no CSV files in %s", dir)
	}
	rc.Logger.Info("reading csv files", "dir", dir, "files", len(files))

	t, err := source.ReadCSVFiles(files)
	if err != nil {
		return nil, err
	}
	rc.Read(t.Len())
	return t, nil
}

// readShapefile reads the first shapefile under dir. A missing directory or
// shapefile is a skip.
func readShapefile(rc *pipeline.RunContext, dir string) (*source.Layer, error) {
	path, err := source.FirstFile(dir, ".shp")
	if err != nil {
		return nil, pipeline.SkipIfMissing(err)
	}
	layer, err := source.ReadShapefile(path)
	if err != nil {
		return nil, err
	}
	rc.Logger.Info("read shapefile", "path", path, "features", len(layer.Features))
	rc.Read(len(layer.Features))
	return layer, nil
}

// featureCollection assembles GeoJSON features, numbering them in order.
type featureCollection struct {
	fc geojson.FeatureCollection
}

func (c *featureCollection) add(g geom.T, props map[string]any) {
	c.fc.Features = append(c.fc.Features, &geojson.Feature{
		ID:         strconv.Itoa(len(c.fc.Features)),
		Geometry:   g,
		Properties: props,
	})
}

func (c *featureCollection) len() int { return len(c.fc.Features) }

// write encodes the collection as the named artifact.
func (c *featureCollection) write(rc *pipeline.RunContext, name string) error {
	if c.fc.Features == nil {
		c.fc.Features = []*geojson.Feature{}
	}
	if err := rc.Out.WriteJSON(name, &c.fc); err != nil {
		return err
	}
	rc.Wrote(c.len())
	rc.Logger.Info("wrote artifact", "artifact", name, "features", c.len())
	return nil
}

// writeJSON writes v as the named artifact and records n output records.
func writeJSON(rc *pipeline.RunContext, name string, v any, n int) error {
	if err := rc.Out.WriteJSON(name, v); err != nil {
		return err
	}
	rc.Wrote(n)
	rc.Logger.Info("wrote artifact", "artifact", name, "records", n)
	return nil
}

func requireColumn(source string, has bool, field string) error {
	if !has {
		return fmt.Errorf("%s: no column for %q", source, field)
	}
	return nil
}
