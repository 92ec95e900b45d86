package steps

import (
	"context"
	"os"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

const (
	foodAtlasFile  = "food-access-research-atlas-data-download-2019.xlsx"
	foodAtlasSheet = "Food Access Research Atlas"
	tractsDir      = "tiger_tracts"

	// Distance to the nearest grocery is computed by the dashboard; the
	// artifact carries a fixed stand-in.
	nearestGroceryMiles = 1.5
)

// FoodDeserts joins the USDA Food Access Research Atlas to census tract
// boundaries.
type FoodDeserts struct{}

func (FoodDeserts) Name() string  { return "food" }
func (FoodDeserts) Title() string { return "Food deserts" }

type foodTract struct {
	pop          int
	povertyRate  float64
	lila         bool
	pctNoVehicle float64
	medianIncome int
}

func (FoodDeserts) Run(_ context.Context, rc *pipeline.RunContext) error {
	atlasPath := rc.Raw(foodAtlasFile)
	if _, err := os.Stat(atlasPath); err != nil {
		return pipeline.SkipIfMissing(err)
	}

	atlas, err := source.ReadSheet(atlasPath, foodAtlasSheet)
	if err != nil {
		return err
	}
	rc.Read(atlas.Len())

	cols, err := rc.Columns(schema.SourceFoodAtlas, atlas.Header)
	if err != nil {
		return err
	}
	if err := requireColumn(schema.SourceFoodAtlas, cols.Has("tract"), "tract"); err != nil {
		return err
	}

	tracts := make(map[string]foodTract)
	for _, row := range atlas.Rows {
		id := tractID(cols.Value(row, "tract"))
		if !strings.HasPrefix(id, stlCountyFIPS) {
			continue
		}
		pop := domain.ParseFloatOrZero(cols.Value(row, "population"))
		t := foodTract{
			pop:          int(pop),
			povertyRate:  domain.Round(domain.ParseFloatOrZero(cols.Value(row, "poverty_rate")), 1),
			lila:         truthy(cols.Value(row, "lila")),
			medianIncome: domain.ParseIntOrZero(cols.Value(row, "median_income")),
		}
		if nv := domain.ParseFloatOrZero(cols.Value(row, "no_vehicle")); nv != 0 && pop > 0 {
			t.pctNoVehicle = domain.Round(nv/pop*100, 1)
		}
		tracts[id] = t
	}
	rc.Logger.Info("st. louis tracts in food atlas", "tracts", len(tracts))

	layer, err := readShapefile(rc, rc.Raw(tractsDir))
	if err != nil {
		return err
	}
	tcols, err := rc.Columns(schema.SourceTracts, layer.Fields)
	if err != nil {
		return err
	}

	var fc featureCollection
	for _, f := range layer.Features {
		geoid := tcols.Value(f.Attrs, "geoid")
		if !strings.HasPrefix(geoid, stlCountyFIPS) {
			continue
		}
		t := tracts[geoid]
		fc.add(f.Geometry, map[string]any{
			"tract_id":              geoid,
			"name":                  tcols.Value(f.Attrs, "name"),
			"poverty_rate":          t.povertyRate,
			"pop":                   t.pop,
			"pct_no_vehicle":        t.pctNoVehicle,
			"nearest_grocery_miles": nearestGroceryMiles,
			"lila":                  t.lila,
			"median_income":         t.medianIncome,
		})
	}
	return fc.write(rc, "food_deserts.geojson")
}

// tractID normalizes a census tract cell, which spreadsheets may render as
// a float.
func tractID(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	return s
}

// truthy interprets spreadsheet booleans: non-zero numbers and yes/true
// spellings.
func truthy(s string) bool {
	if f, ok := domain.ParseCount(s); ok {
		return f != 0
	}
	return domain.ParseFlag(s)
}
