package steps

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

// Crime aggregates SLMPD incident exports.
type Crime struct{}

func (Crime) Name() string  { return "crime" }
func (Crime) Title() string { return "Crime data" }

type crimeNeighborhood struct {
	Name             string              `json:"name"`
	Total            int                 `json:"total"`
	TopOffenses      domain.Ranking[int] `json:"topOffenses"`
	Felonies         int                 `json:"felonies"`
	FirearmIncidents int                 `json:"firearmIncidents"`

	offenses *domain.Counter[int]
}

type crimeReport struct {
	Year           int                                          `json:"year"`
	TotalIncidents int                                          `json:"totalIncidents"`
	TotalFelonies  int                                          `json:"totalFelonies"`
	TotalFirearms  int                                          `json:"totalFirearms"`
	Neighborhoods  map[domain.NeighborhoodID]*crimeNeighborhood `json:"neighborhoods"`
	HeatmapPoints  []heatPoint                                  `json:"heatmapPoints"`
	incidentSummary
}

func (Crime) Run(_ context.Context, rc *pipeline.RunContext) error {
	table, err := readCSVDir(rc, rc.Raw("crime"))
	if err != nil {
		return err
	}
	cols, err := rc.Columns(schema.SourceCrime, table.Header)
	if err != nil {
		return err
	}

	occurred := func(row source.Row) (time.Time, bool) {
		return domain.ParseTimestamp(cols.Value(row, "date"), domain.CrimeLayouts)
	}
	rows := filterYear(rc, table.Rows, occurred)

	stats := newIncidentStats()
	report := crimeReport{
		Year:          rc.Year,
		Neighborhoods: make(map[domain.NeighborhoodID]*crimeNeighborhood),
		HeatmapPoints: []heatPoint{},
	}
	unassigned, outside := 0, 0

	for _, row := range rows {
		offense := firstNonEmpty(
			strings.TrimSpace(cols.Value(row, "description")),
			strings.TrimSpace(cols.Value(row, "crime")),
			unknownCategory,
		)
		when, dated := occurred(row)
		stats.add(offense, when, dated)

		felony := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(cols.Value(row, "felony"))), "FEL")
		firearm := domain.ParseFlag(cols.Value(row, "firearm"))
		if felony {
			report.TotalFelonies++
		}
		if firearm {
			report.TotalFirearms++
		}

		id, name, missed := neighborhoodRef(rc,
			strings.TrimSpace(cols.Value(row, "neighborhood_num")),
			strings.TrimSpace(cols.Value(row, "neighborhood")),
		)
		if missed {
			unassigned++
		}
		if id != "" {
			nb, ok := report.Neighborhoods[id]
			if !ok {
				nb = &crimeNeighborhood{Name: name, offenses: domain.NewCounter[int]()}
				report.Neighborhoods[id] = nb
			}
			nb.Total++
			nb.offenses.Inc(offense)
			if felony {
				nb.Felonies++
			}
			if firearm {
				nb.FirearmIncidents++
			}
		}

		lat, err1 := strconv.ParseFloat(strings.TrimSpace(cols.Value(row, "lat")), 64)
		lng, err2 := strconv.ParseFloat(strings.TrimSpace(cols.Value(row, "lng")), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		loc := domain.Location{Lat: lat, Lng: lng}
		if !loc.InStLouis() {
			outside++
			continue
		}
		if len(report.HeatmapPoints) < heatmapLimit {
			p := heatPoint{Lat: lat, Lng: lng, Category: offense, Neighborhood: id}
			if dated {
				p.Date = when.Format(dayLayout)
			}
			report.HeatmapPoints = append(report.HeatmapPoints, p)
		}
	}
	if unassigned > 0 {
		rc.Logger.Warn("incidents without a known neighborhood", "rows", unassigned)
	}
	rc.Dropped("outside_city", outside)

	for _, nb := range report.Neighborhoods {
		nb.TopOffenses = nb.offenses.MostCommon(neighborhoodTopN)
	}
	report.TotalIncidents = stats.categories.Total()
	report.incidentSummary = stats.summary()

	return writeJSON(rc, "crime.json", report, report.TotalIncidents)
}
