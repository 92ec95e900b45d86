package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/geo"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// acsMissing is the Census API sentinel for an unavailable estimate.
const acsMissing = "-666666666"

// Housing joins ACS tract estimates of rent and home value to neighborhoods.
type Housing struct{}

func (Housing) Name() string  { return "housing" }
func (Housing) Title() string { return "Housing (ACS)" }

type housingNeighborhood struct {
	Name            string `json:"name"`
	MedianRent      *int   `json:"medianRent"`
	MedianHomeValue *int   `json:"medianHomeValue"`
	TractCount      int    `json:"tractCount"`
}

type housingReport struct {
	Year                int                                            `json:"year"`
	CityMedianRent      *int                                           `json:"cityMedianRent"`
	CityMedianHomeValue *int                                           `json:"cityMedianHomeValue"`
	Neighborhoods       map[domain.NeighborhoodID]*housingNeighborhood `json:"neighborhoods"`
}

// tractEstimate holds the positive ACS estimates of one tract; zero means
// unavailable.
type tractEstimate struct {
	rent, value int
}

type tract struct {
	estimate tractEstimate
	geometry geom.T
}

func (Housing) Run(_ context.Context, rc *pipeline.RunContext) error {
	data, err := os.ReadFile(rc.Raw("housing_acs.json"))
	if err != nil {
		return pipeline.SkipIfMissing(err)
	}
	acs, err := decodeACS(data)
	if err != nil {
		return err
	}
	rc.Read(acs.Len())

	cols, err := rc.Columns(schema.SourceACS, acs.Header)
	if err != nil {
		return err
	}
	for _, f := range []string{"rent", "home_value", "state", "county", "tract"} {
		if err := requireColumn(schema.SourceACS, cols.Has(f), f); err != nil {
			return err
		}
	}

	estimates := make(map[string]tractEstimate, acs.Len())
	var rents, values []int
	for _, row := range acs.Rows {
		geoid := cols.Value(row, "state") + cols.Value(row, "county") + cols.Value(row, "tract")
		e := tractEstimate{
			rent:  acsValue(cols.Value(row, "rent")),
			value: acsValue(cols.Value(row, "home_value")),
		}
		estimates[geoid] = e
		if e.rent > 0 {
			rents = append(rents, e.rent)
		}
		if e.value > 0 {
			values = append(values, e.value)
		}
	}

	report := housingReport{
		Year:                rc.ACSYear,
		CityMedianRent:      upperMedian(rents),
		CityMedianHomeValue: upperMedian(values),
		Neighborhoods:       make(map[domain.NeighborhoodID]*housingNeighborhood),
	}
	rc.Logger.Info("city medians", "rent", deref(report.CityMedianRent), "home_value", deref(report.CityMedianHomeValue))

	tracts, err := cityTracts(rc, estimates)
	if err != nil {
		return err
	}

	hoods, err := readShapefile(rc, rc.Raw(neighborhoodsDir))
	if err != nil {
		return err
	}
	ncols, err := rc.Columns(schema.SourceNeighborhoods, hoods.Fields)
	if err != nil {
		return err
	}

	matches := 0
	for _, f := range hoods.Features {
		id, ok := domain.ParseNeighborhoodID(ncols.Value(f.Attrs, "id"))
		if !ok {
			continue
		}
		if _, seen := report.Neighborhoods[id]; seen {
			continue
		}

		var nr, nv []int
		count := 0
		for _, t := range tracts {
			if !geo.Intersects(t.geometry, f.Geometry) {
				continue
			}
			count++
			if t.estimate.rent > 0 {
				nr = append(nr, t.estimate.rent)
			}
			if t.estimate.value > 0 {
				nv = append(nv, t.estimate.value)
			}
		}
		matches += count
		report.Neighborhoods[id] = &housingNeighborhood{
			Name:            firstNonEmpty(ncols.Value(f.Attrs, "name"), "Neighborhood "+string(id)),
			MedianRent:      roundedMean(nr),
			MedianHomeValue: roundedMean(nv),
			TractCount:      count,
		}
	}
	rc.Logger.Info("tract neighborhood join", "matches", matches)

	return writeJSON(rc, "housing.json", report, len(report.Neighborhoods))
}

func cityTracts(rc *pipeline.RunContext, estimates map[string]tractEstimate) ([]tract, error) {
	layer, err := readShapefile(rc, rc.Raw(tractsDir))
	if err != nil {
		return nil, err
	}
	cols, err := rc.Columns(schema.SourceTracts, layer.Fields)
	if err != nil {
		return nil, err
	}
	var out []tract
	for _, f := range layer.Features {
		geoid := cols.Value(f.Attrs, "geoid")
		if !strings.HasPrefix(geoid, stlCountyFIPS) {
			continue
		}
		out = append(out, tract{estimate: estimates[geoid], geometry: f.Geometry})
	}
	return out, nil
}

// decodeACS reads a Census API response: a header row followed by data
// rows. Cells may be strings, numbers or null.
func decodeACS(data []byte) (*source.Table, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode housing_acs.json: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode housing_acs.json: no header row")
	}
	t := &source.Table{Header: make([]string, len(raw[0]))}
	for i, h := range raw[0] {
		t.Header[i] = scalarText(h)
	}
	for _, cells := range raw[1:] {
		row := make(source.Row, len(t.Header))
		for i, h := range t.Header {
			if i < len(cells) {
				row[h] = scalarText(cells[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func acsValue(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == acsMissing {
		return 0
	}
	return max(0, domain.ParseIntOrZero(s))
}

// upperMedian returns the middle value, taking the upper of the two middle
// values for even counts, or nil when empty.
func upperMedian(vals []int) *int {
	if len(vals) == 0 {
		return nil
	}
	sorted := append([]int(nil), vals...)
	sort.Ints(sorted)
	m := sorted[len(sorted)/2]
	return &m
}

func roundedMean(vals []int) *int {
	if len(vals) == 0 {
		return nil
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	m := int(math.Round(float64(sum) / float64(len(vals))))
	return &m
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
