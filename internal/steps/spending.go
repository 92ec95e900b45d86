package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

const (
	topProjects     = 100
	topVendors      = 20
	otherCategory   = "Other"
	spendingRawFile = "arpa.json"
)

// spendingCategories classify projects by title keywords. The first matching
// category wins.
var spendingCategories = []struct {
	name     string
	keywords []string
}{
	{"Health", []string{"health", "covid", "vaccine", "medical", "hospital", "clinic"}},
	{"Public Safety", []string{"police", "fire", "safety", "enforcement", "security"}},
	{"Infrastructure", []string{"infrastructure", "water", "sewer", "road", "bridge", "building"}},
	{"Housing", []string{"housing", "rent", "mortgage", "homeless", "shelter"}},
	{"Economic Recovery", []string{"business", "economic", "workforce", "employment", "job"}},
	{"Community", []string{"community", "youth", "education", "park", "recreation"}},
	{"Technology", []string{"technology", "broadband", "internet", "digital"}},
}

// categorizeProject returns the spending category of a project title.
func categorizeProject(title string) string {
	t := strings.ToLower(title)
	for _, c := range spendingCategories {
		for _, kw := range c.keywords {
			if strings.Contains(t, kw) {
				return c.name
			}
		}
	}
	return otherCategory
}

// Spending summarizes American Rescue Plan Act expenditures.
type Spending struct{}

func (Spending) Name() string  { return "arpa" }
func (Spending) Title() string { return "ARPA funds" }

type spendingProject struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	TotalSpent float64 `json:"totalSpent"`
	Category   string  `json:"category"`
}

type spendingVendor struct {
	Name       string  `json:"name"`
	TotalSpent float64 `json:"totalSpent"`
}

type spendingReport struct {
	TotalSpent         float64                 `json:"totalSpent"`
	TransactionCount   int                     `json:"transactionCount"`
	Projects           []spendingProject       `json:"projects"`
	MonthlySpending    domain.Ranking[float64] `json:"monthlySpending"`
	CumulativeSpending domain.Ranking[float64] `json:"cumulativeSpending"`
	TopVendors         []spendingVendor        `json:"topVendors"`
	CategoryBreakdown  domain.Ranking[float64] `json:"categoryBreakdown"`
}

func (Spending) Run(_ context.Context, rc *pipeline.RunContext) error {
	data, err := os.ReadFile(rc.Raw(spendingRawFile))
	if err != nil {
		return pipeline.SkipIfMissing(err)
	}
	records, header, err := decodeRecords(data)
	if err != nil {
		return pipeline.Skip("%s: %v", spendingRawFile, err)
	}
	rc.Read(len(records))

	cols, err := rc.Columns(schema.SourceSpending, header)
	if err != nil {
		return err
	}

	report := summarizeSpending(cols, records)
	return writeJSON(rc, "arpa.json", report, len(report.Projects))
}

func summarizeSpending(cols schema.Columns, records []source.Row) spendingReport {
	type project struct {
		title string
		spent float64
	}
	projects := make(map[string]*project)
	var order []string
	vendors := domain.NewCounter[float64]()
	monthly := domain.NewCounter[float64]()
	total := 0.0

	for _, rec := range records {
		amount, _ := domain.ParseCount(cols.Value(rec, "amount"))
		title := strings.TrimSpace(cols.Value(rec, "title"))
		pid := firstNonEmpty(strings.TrimSpace(cols.Value(rec, "project_id")), "0")
		vendor := strings.TrimSpace(cols.Value(rec, "vendor"))
		total += amount

		p, ok := projects[pid]
		if !ok {
			p = &project{}
			projects[pid] = p
			order = append(order, pid)
		}
		if title != "" {
			p.title = title
		}
		p.spent += amount

		if vendor != "" {
			vendors.Add(vendor, amount)
		}
		if t, ok := domain.ParseTimestamp(cols.Value(rec, "date"), domain.SpendingLayouts); ok {
			monthly.Add(t.Format("2006-01"), amount)
		}
	}

	report := spendingReport{
		TotalSpent:       domain.Round(total, 2),
		TransactionCount: len(records),
		Projects:         make([]spendingProject, 0, len(order)),
		TopVendors:       []spendingVendor{},
	}

	categories := domain.NewCounter[float64]()
	for _, pid := range order {
		p := projects[pid]
		sp := spendingProject{
			ID:         domain.ParseIntOrZero(pid),
			Title:      p.title,
			TotalSpent: domain.Round(p.spent, 2),
			Category:   categorizeProject(p.title),
		}
		categories.Add(sp.Category, sp.TotalSpent)
		report.Projects = append(report.Projects, sp)
	}
	sort.SliceStable(report.Projects, func(i, j int) bool {
		return report.Projects[i].TotalSpent > report.Projects[j].TotalSpent
	})
	if len(report.Projects) > topProjects {
		report.Projects = report.Projects[:topProjects]
	}

	for _, v := range vendors.MostCommon(topVendors) {
		report.TopVendors = append(report.TopVendors, spendingVendor{Name: v.Key, TotalSpent: domain.Round(v.Value, 2)})
	}

	report.CategoryBreakdown = roundRanking(categories.MostCommon(0))

	months := monthly.Sorted(lexical)
	running := 0.0
	for _, m := range months {
		running += m.Value
		report.CumulativeSpending = append(report.CumulativeSpending, domain.Entry[float64]{Key: m.Key, Value: domain.Round(running, 2)})
	}
	report.MonthlySpending = roundRanking(months)
	return report
}

func roundRanking(r domain.Ranking[float64]) domain.Ranking[float64] {
	out := make(domain.Ranking[float64], len(r))
	for i, e := range r {
		out[i] = domain.Entry[float64]{Key: e.Key, Value: domain.Round(e.Value, 2)}
	}
	return out
}

// decodeRecords accepts either a JSON array of objects or an object wrapping
// one under "data" or "DATA". Scalar values are rendered as text; the
// returned header is the sorted union of keys.
func decodeRecords(data []byte) ([]source.Row, []string, error) {
	var list []map[string]json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, nil, err
		}
		inner, ok := wrapper["data"]
		if !ok {
			inner, ok = wrapper["DATA"]
		}
		if !ok {
			return nil, nil, fmt.Errorf("object has no data array")
		}
		trimmed = inner
	}
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, nil, fmt.Errorf("unexpected record format: %w", err)
	}

	seen := make(map[string]bool)
	var header []string
	rows := make([]source.Row, 0, len(list))
	for _, rec := range list {
		row := make(source.Row, len(rec))
		for k, raw := range rec {
			row[k] = scalarText(raw)
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
		rows = append(rows, row)
	}
	sort.Strings(header)
	return rows, header, nil
}

// scalarText renders a JSON scalar as text. Strings are unquoted, null and
// composite values become "".
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	case '{', '[', 'n':
		return ""
	}
	return string(raw)
}
