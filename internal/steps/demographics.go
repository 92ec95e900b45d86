package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
)

var (
	countLine        = regexp.MustCompile(`^-?[\d,]+$`)
	censusDataSuffix = regexp.MustCompile(`(?i)\s*Census Data\s*$`)
)

// Demographics extracts census figures from scraped neighborhood pages.
type Demographics struct{}

func (Demographics) Name() string  { return "demographics" }
func (Demographics) Title() string { return "Demographics" }

type demographicsPage struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Text2010 string `json:"text_2010"`
}

type demographicsEntry struct {
	Name       string           `json:"name"`
	Population populationCounts `json:"population"`
	Race       raceCounts       `json:"race"`
	Housing    housingUnits     `json:"housing"`
	PopChange  float64          `json:"popChange10to20"`
}

type populationCounts struct {
	Y2020 int `json:"2020"`
	Y2010 int `json:"2010"`
	Y2000 int `json:"2000"`
}

type raceCounts struct {
	White    int `json:"white"`
	Black    int `json:"black"`
	Asian    int `json:"asian"`
	Hispanic int `json:"hispanic"`
	Other    int `json:"other"`
}

type housingUnits struct {
	TotalUnits     int     `json:"totalUnits"`
	Occupied       int     `json:"occupied"`
	Vacant         int     `json:"vacant"`
	VacancyRate    float64 `json:"vacancyRate"`
	OwnerOccupied  int     `json:"ownerOccupied"`
	RenterOccupied int     `json:"renterOccupied"`
}

func (Demographics) Run(_ context.Context, rc *pipeline.RunContext) error {
	data, err := os.ReadFile(rc.Raw("demographics.json"))
	if err != nil {
		return pipeline.SkipIfMissing(err)
	}
	var pages map[string]demographicsPage
	if err := json.Unmarshal(data, &pages); err != nil {
		return fmt.Errorf("decode demographics.json: %w", err)
	}
	rc.Read(len(pages))

	out := make(map[domain.NeighborhoodID]demographicsEntry, len(pages))
	unresolved := 0
	for key, page := range pages {
		id, ok := rc.Neighborhoods.Resolve(key)
		if !ok {
			unresolved++
			continue
		}
		out[id] = demographicsFromPage(id, page)
	}
	rc.Dropped("unknown_neighborhood", unresolved)
	return writeJSON(rc, "demographics.json", out, len(out))
}

func demographicsFromPage(id domain.NeighborhoodID, page demographicsPage) demographicsEntry {
	name := strings.TrimSpace(censusDataSuffix.ReplaceAllString(page.Name, ""))
	if name == "" {
		name = "Neighborhood " + string(id)
	}

	lm := labelValues(page.Text)
	pop2010 := 0
	if page.Text2010 != "" {
		pop2010 = labelValues(page.Text2010)["total population"]
	}

	e := demographicsEntry{
		Name: name,
		Population: populationCounts{
			Y2020: lm["total population"],
			Y2010: pop2010,
		},
		Race: raceCounts{
			White:    lm["white alone"],
			Black:    lm["black or african-american alone"],
			Asian:    lm["asian-american alone"],
			Hispanic: lm["hispanic or latino"],
			Other:    lm["some other race alone"] + lm["two or more races"],
		},
		Housing: housingUnits{
			TotalUnits: lm["total housing units"],
			Occupied:   lm["occupied housing units"],
			Vacant:     lm["vacant housing units"],
		},
	}
	if e.Race.Asian == 0 {
		e.Race.Asian = lm["asian alone"]
	}
	if pop2010 > 0 {
		e.PopChange = domain.Round(float64(e.Population.Y2020-pop2010)/float64(pop2010)*100, 1)
	}
	if e.Housing.TotalUnits > 0 {
		e.Housing.VacancyRate = domain.Round(float64(e.Housing.Vacant)/float64(e.Housing.TotalUnits)*100, 1)
	}
	return e
}

// labelValues pairs each line with the count on the following non-empty
// line. Labels are lowercased; a repeated label keeps its last value.
func labelValues(text string) map[string]int {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	out := make(map[string]int)
	for i := 0; i+1 < len(lines); i++ {
		if countLine.MatchString(lines[i+1]) {
			out[strings.ToLower(lines[i])] = domain.ParseIntOrZero(strings.ReplaceAll(lines[i+1], ",", ""))
		}
	}
	return out
}
