package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

const (
	maxResolutionDays = 365
	trendYears        = 3
)

// ServiceRequests aggregates Citizens' Service Bureau (311) requests.
type ServiceRequests struct{}

func (ServiceRequests) Name() string  { return "csb" }
func (ServiceRequests) Title() string { return "CSB 311 data" }

type csbNeighborhood struct {
	Name              string              `json:"name"`
	Total             int                 `json:"total"`
	Closed            int                 `json:"closed"`
	AvgResolutionDays float64             `json:"avgResolutionDays"`
	TopCategories     domain.Ranking[int] `json:"topCategories"`
}

type csbReport struct {
	Year          int                                        `json:"year"`
	TotalRequests int                                        `json:"totalRequests"`
	Neighborhoods map[domain.NeighborhoodID]*csbNeighborhood `json:"neighborhoods"`
	HeatmapPoints []heatPoint                                `json:"heatmapPoints"`
	incidentSummary
}

type trendsReport struct {
	YearlyMonthly    map[string]domain.Ranking[int] `json:"yearlyMonthly"`
	YearlyCategories map[string]domain.Ranking[int] `json:"yearlyCategories"`
	Weather          map[string]any                 `json:"weather"`
}

// neighborhoodTally accumulates per-neighborhood counts before they are
// finalized into the artifact shape.
type neighborhoodTally struct {
	name       string
	total      int
	closed     int
	resolution []int
	categories *domain.Counter[int]
}

func (ServiceRequests) Run(_ context.Context, rc *pipeline.RunContext) error {
	table, err := readCSVDir(rc, rc.Raw("csb"))
	if err != nil {
		return err
	}
	cols, err := rc.Columns(schema.SourceServiceRequests, table.Header)
	if err != nil {
		return err
	}

	opened := func(row source.Row) (time.Time, bool) {
		return domain.ParseTimestamp(cols.Value(row, "date"), domain.ServiceRequestLayouts)
	}
	category := func(row source.Row) string {
		return firstNonEmpty(strings.TrimSpace(cols.Value(row, "category")), unknownCategory)
	}

	rows := filterYear(rc, table.Rows, opened)
	stats := newIncidentStats()
	tallies := make(map[domain.NeighborhoodID]*neighborhoodTally)
	unassigned := 0

	for _, row := range rows {
		cat := category(row)
		when, dated := opened(row)
		stats.add(cat, when, dated)

		id, name, missed := neighborhoodRef(rc, "", strings.TrimSpace(cols.Value(row, "neighborhood")))
		if missed {
			unassigned++
		}
		if id == "" {
			continue
		}
		t, ok := tallies[id]
		if !ok {
			t = &neighborhoodTally{name: name, categories: domain.NewCounter[int]()}
			tallies[id] = t
		}
		t.total++
		t.categories.Inc(cat)

		status := strings.ToLower(cols.Value(row, "status"))
		if strings.Contains(status, "closed") || strings.Contains(status, "complete") {
			t.closed++
		}
		if closed, ok := domain.ParseTimestamp(cols.Value(row, "closed"), domain.ServiceRequestLayouts); ok && dated && closed.After(when) {
			if days := int(closed.Sub(when).Hours() / 24); days < maxResolutionDays {
				t.resolution = append(t.resolution, days)
			}
		}
	}
	if unassigned > 0 {
		rc.Logger.Warn("requests without a known neighborhood", "rows", unassigned)
	}

	report := csbReport{
		Year:            rc.Year,
		TotalRequests:   stats.categories.Total(),
		Neighborhoods:   make(map[domain.NeighborhoodID]*csbNeighborhood, len(tallies)),
		HeatmapPoints:   samplePoints(csbHeatmap(rc, cols, table.Rows, category), heatmapLimit),
		incidentSummary: stats.summary(),
	}
	for id, t := range tallies {
		report.Neighborhoods[id] = &csbNeighborhood{
			Name:              t.name,
			Total:             t.total,
			Closed:            t.closed,
			AvgResolutionDays: mean(t.resolution, 1),
			TopCategories:     t.categories.MostCommon(neighborhoodTopN),
		}
	}

	name := fmt.Sprintf("csb_%d.json", rc.Year)
	if err := writeJSON(rc, name, report, report.TotalRequests); err != nil {
		return err
	}
	if err := rc.Out.Copy(name, "csb_latest.json"); err != nil {
		return err
	}

	trends := csbTrends(rc.Year, table.Rows, opened, category)
	return writeJSON(rc, "trends.json", trends, len(trends.YearlyMonthly))
}

// csbHeatmap locates requests of every year inside the city, from latitude
// and longitude columns or else the Web Mercator SRX/SRY pair.
func csbHeatmap(rc *pipeline.RunContext, cols schema.Columns, rows []source.Row, category func(source.Row) string) []heatPoint {
	var points []heatPoint
	outside := 0
	for _, row := range rows {
		loc, ok := requestLocation(cols, row)
		if !ok {
			continue
		}
		if !loc.InStLouis() {
			outside++
			continue
		}
		p := heatPoint{Lat: loc.Lat, Lng: loc.Lng, Category: category(row)}
		if t, ok := domain.ParseTimestamp(cols.Value(row, "date"), domain.ServiceRequestLayouts); ok {
			p.Date = t.Format(dayLayout)
		}
		p.Neighborhood, _, _ = neighborhoodRef(rc, "", strings.TrimSpace(cols.Value(row, "neighborhood")))
		points = append(points, p)
	}
	rc.Dropped("outside_city", outside)
	rc.Logger.Info("heatmap points", "points", len(points))
	return points
}

func requestLocation(cols schema.Columns, row source.Row) (domain.Location, bool) {
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(cols.Value(row, "lat")), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(cols.Value(row, "lng")), 64)
	if err1 == nil && err2 == nil {
		return domain.Location{Lat: lat, Lng: lng}, true
	}
	x := domain.ParseFloatOrZero(cols.Value(row, "srx"))
	y := domain.ParseFloatOrZero(cols.Value(row, "sry"))
	if x == 0 || y == 0 {
		return domain.Location{}, false
	}
	return domain.WebMercatorToLocation(x, y), true
}

// csbTrends counts requests per month and per category for the data year
// and the years before it.
func csbTrends(year int, rows []source.Row, opened func(source.Row) (time.Time, bool), category func(source.Row) string) trendsReport {
	monthly := make(map[string]*domain.Counter[int])
	cats := make(map[string]*domain.Counter[int])
	for _, row := range rows {
		t, ok := opened(row)
		if !ok || t.Year() > year || t.Year() <= year-trendYears {
			continue
		}
		y := strconv.Itoa(t.Year())
		if monthly[y] == nil {
			monthly[y] = domain.NewCounter[int]()
			cats[y] = domain.NewCounter[int]()
		}
		monthly[y].Inc(t.Format("2006-01"))
		cats[y].Inc(category(row))
	}

	out := trendsReport{
		YearlyMonthly:    make(map[string]domain.Ranking[int], len(monthly)),
		YearlyCategories: make(map[string]domain.Ranking[int], len(cats)),
		Weather:          map[string]any{},
	}
	for y, c := range monthly {
		out.YearlyMonthly[y] = c.Sorted(lexical)
		out.YearlyCategories[y] = cats[y].MostCommon(0)
	}
	return out
}

// mean averages vals rounded to places, or 0 when empty.
func mean(vals []int, places int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return domain.Round(float64(sum)/float64(len(vals)), places)
}
