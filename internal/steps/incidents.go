package steps

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

const (
	heatmapLimit     = 50000
	monthlyTopN      = 10
	neighborhoodTopN = 5
	unknownCategory  = "Unknown"
	dayLayout        = "2006-01-02"
)

// incidentStats tallies categorized, timestamped incidents by day, hour,
// weekday and month.
type incidentStats struct {
	categories *domain.Counter[int]
	daily      *domain.Counter[int]
	hourly     *domain.Counter[int]
	weekday    *domain.Counter[int]
	monthly    map[string]*domain.Counter[int]
}

func newIncidentStats() *incidentStats {
	return &incidentStats{
		categories: domain.NewCounter[int](),
		daily:      domain.NewCounter[int](),
		hourly:     domain.NewCounter[int](),
		weekday:    domain.NewCounter[int](),
		monthly:    make(map[string]*domain.Counter[int]),
	}
}

// add records one incident. when is ignored unless dated is true.
func (s *incidentStats) add(category string, when time.Time, dated bool) {
	s.categories.Inc(category)
	if !dated {
		return
	}
	day := when.Format(dayLayout)
	s.daily.Inc(day)
	s.hourly.Inc(strconv.Itoa(when.Hour()))
	s.weekday.Inc(strconv.Itoa(domain.MondayIndex(when)))

	month := day[:7]
	m, ok := s.monthly[month]
	if !ok {
		m = domain.NewCounter[int]()
		s.monthly[month] = m
	}
	m.Inc(category)
}

// incidentSummary is the shared part of the incident artifacts.
type incidentSummary struct {
	Categories  domain.Ranking[int]            `json:"categories"`
	DailyCounts domain.Ranking[int]            `json:"dailyCounts"`
	Hourly      domain.Ranking[int]            `json:"hourly"`
	Weekday     domain.Ranking[int]            `json:"weekday"`
	Monthly     map[string]domain.Ranking[int] `json:"monthly"`
}

func (s *incidentStats) summary() incidentSummary {
	monthly := make(map[string]domain.Ranking[int], len(s.monthly))
	for k, c := range s.monthly {
		monthly[k] = c.MostCommon(monthlyTopN)
	}
	return incidentSummary{
		Categories:  s.categories.MostCommon(0),
		DailyCounts: s.daily.Sorted(lexical),
		Hourly:      s.hourly.Sorted(numeric),
		Weekday:     s.weekday.Sorted(numeric),
		Monthly:     monthly,
	}
}

func lexical(a, b string) bool { return a < b }

func numeric(a, b string) bool {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	return x < y
}

// heatPoint is one incident on the dashboard heatmap. It encodes as a
// compact [lat, lng, category, date, neighborhood] array.
type heatPoint struct {
	Lat          float64
	Lng          float64
	Category     string
	Date         string
	Neighborhood domain.NeighborhoodID
}

// MarshalJSON implements json.Marshaler.
func (p heatPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Lat, p.Lng, p.Category, p.Date, p.Neighborhood})
}

// samplePoints keeps an evenly spaced subset of at most limit points.
func samplePoints(points []heatPoint, limit int) []heatPoint {
	stride := max(1, len(points)/limit)
	out := make([]heatPoint, 0, min(len(points), limit))
	for i := 0; i < len(points) && len(out) < limit; i += stride {
		out = append(out, points[i])
	}
	return out
}

// filterYear returns the rows whose date falls in year. When none do, every
// row is returned and a warning logged.
func filterYear(rc *pipeline.RunContext, rows []source.Row, date func(source.Row) (time.Time, bool)) []source.Row {
	var out []source.Row
	for _, row := range rows {
		if t, ok := date(row); ok && t.Year() == rc.Year {
			out = append(out, row)
		}
	}
	rc.Logger.Info("rows in data year", "year", rc.Year, "rows", len(out))
	if len(out) == 0 {
		rc.Logger.Warn("no rows for data year, using all rows", "year", rc.Year)
		return rows
	}
	return out
}

// neighborhoodRef resolves a row's neighborhood, preferring the numeric code
// over the name. unassigned is true when a reference was present but could
// not be resolved.
func neighborhoodRef(rc *pipeline.RunContext, code, name string) (id domain.NeighborhoodID, label string, unassigned bool) {
	for _, raw := range []string{code, name} {
		if raw == "" {
			continue
		}
		if id, ok := rc.Neighborhoods.Resolve(raw); ok {
			return id, rc.Neighborhoods.Name(id, firstNonEmpty(name, string(id))), false
		}
	}
	return "", "", code != "" || name != ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
