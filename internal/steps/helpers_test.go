package steps

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunContext(t *testing.T) *pipeline.RunContext {
	t.Helper()
	cat, err := schema.Default()
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	sink, err := pipeline.NewSink(filepath.Join(t.TempDir(), "out"), metrics)
	require.NoError(t, err)

	dir := domain.NewDirectory()
	dir.Add("05", "Carondelet")
	dir.Add("39", "Tower Grove South")

	return &pipeline.RunContext{
		RawDir:        t.TempDir(),
		Year:          2024,
		ACSYear:       2022,
		Catalog:       cat,
		Neighborhoods: dir,
		Out:           sink,
		Logger:        discardLogger(),
		Metrics:       metrics,
	}
}

func writeRaw(t *testing.T, rc *pipeline.RunContext, rel, content string) {
	t.Helper()
	path := rc.Raw(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readArtifact(t *testing.T, rc *pipeline.RunContext, name string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(readArtifactBytes(t, rc, name), &out))
	return out
}

func readArtifactBytes(t *testing.T, rc *pipeline.RunContext, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(rc.Out.Path(name))
	require.NoError(t, err)
	return data
}

type shpRecord struct {
	ring  []shp.Point
	attrs []any
}

// writeShapefile writes polygon records with the given dBASE fields.
func writeShapefile(t *testing.T, path string, fields []shp.Field, recs []shpRecord) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(fields))
	for _, r := range recs {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{r.ring}))
		row := w.Write(&poly)
		for i, v := range r.attrs {
			require.NoError(t, w.WriteAttribute(int(row), i, v))
		}
	}
	w.Close()
}

// square returns a clockwise ring with its south-west corner at (x, y).
func square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

// writeNeighborhoods writes two adjacent neighborhood squares: 05 west of
// -90.25 and 39 east of it.
func writeNeighborhoods(t *testing.T, rc *pipeline.RunContext) {
	t.Helper()
	writeShapefile(t, rc.Raw("neighborhoods", "nbrhds.shp"),
		[]shp.Field{shp.NumberField("NHD_NUM", 4), shp.StringField("NHD_NAME", 40)},
		[]shpRecord{
			{ring: square(-90.30, 38.60, 0.05), attrs: []any{5, "Carondelet"}},
			{ring: square(-90.25, 38.60, 0.05), attrs: []any{39, "Tower Grove South"}},
		})
}

// writeTracts writes a city tract spanning both neighborhoods, a city tract
// inside 39 and a county tract outside the city.
func writeTracts(t *testing.T, rc *pipeline.RunContext) {
	t.Helper()
	writeShapefile(t, rc.Raw(tractsDir, "tl_2020_29_tract.shp"),
		[]shp.Field{shp.StringField("GEOID", 11), shp.StringField("NAMELSAD", 40)},
		[]shpRecord{
			{ring: square(-90.27, 38.61, 0.04), attrs: []any{"29510101100", "Census Tract 1011"}},
			{ring: square(-90.22, 38.61, 0.01), attrs: []any{"29510101200", "Census Tract 1012"}},
			{ring: square(-90.50, 38.61, 0.01), attrs: []any{"29189210100", "Census Tract 2101"}},
		})
}
