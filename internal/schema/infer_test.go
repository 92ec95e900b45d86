package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	dateRule := Rule{
		Exact:    []string{"DATETIMEINIT"},
		Fallback: [][]string{{"date+request"}, {"date+init"}, {"date"}},
	}
	categoryRule := Rule{
		Exact:    []string{"PROBLEMCODE"},
		Fallback: [][]string{{"problem", "category"}, {"type"}},
	}

	tests := []struct {
		name   string
		header []string
		rule   Rule
		want   string
	}{
		{"exact wins over earlier fallback", []string{"RequestDate", "DateTimeInit"}, dateRule, "DateTimeInit"},
		{"exact is case-insensitive", []string{"datetimeinit"}, dateRule, "datetimeinit"},
		{"first fallback rank", []string{"CloseDate", "Date Requested"}, dateRule, "Date Requested"},
		{"conjunction must fully match", []string{"init_flag", "DateCreated"}, dateRule, "DateCreated"},
		{"second rank before third", []string{"date", "date_initiated"}, dateRule, "date_initiated"},
		{"alternatives share a rank in header order", []string{"Category", "ProblemDesc"}, categoryRule, "Category"},
		{"lower rank only when higher ranks miss", []string{"RequestType", "Status"}, categoryRule, "RequestType"},
		{"none found", []string{"ID", "Status"}, categoryRule, NotFound},
		{"empty header", nil, dateRule, NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Infer(tt.header, tt.rule))
		})
	}
}

func TestInfer_ExactScansHeaderOrder(t *testing.T) {
	rule := Rule{Exact: []string{"longitude", "x"}}
	assert.Equal(t, "X", Infer([]string{"X", "Longitude"}, rule))
}

func TestInfer_IgnoresBlankKeywords(t *testing.T) {
	rule := Rule{Fallback: [][]string{{"+"}, {""}}}
	assert.Equal(t, NotFound, Infer([]string{"anything"}, rule))
}

func TestInfer_Pure(t *testing.T) {
	header := []string{"A", "ProblemCode", "B"}
	rule := Rule{Exact: []string{"PROBLEMCODE"}}
	before := append([]string(nil), header...)
	for range 3 {
		assert.Equal(t, "ProblemCode", Infer(header, rule))
	}
	assert.Equal(t, before, header)
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	for _, source := range []string{
		SourceServiceRequests, SourceCrime, SourceParcels, SourceNeighborhoods,
		SourceTracts, SourceFoodAtlas, SourceACS, SourceSpending,
	} {
		s, err := cat.Schema(source)
		require.NoError(t, err, source)
		assert.NotEmpty(t, s, source)
	}

	_, err = cat.Schema("weather")
	require.Error(t, err)
}

func TestDefaultCatalog_ServiceRequestHeaders(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	header := []string{
		"REQUESTID", "DATETIMEINIT", "PROBLEMCODE", "DESCRIPTION", "STATUS",
		"DATETIMECLOSED", "NEIGHBORHOOD", "WARD", "SRX", "SRY",
	}
	got := cat[SourceServiceRequests].Resolve(header)

	want := Columns{
		"date":         "DATETIMEINIT",
		"category":     "PROBLEMCODE",
		"status":       "STATUS",
		"neighborhood": "NEIGHBORHOOD",
		"lat":          NotFound,
		"lng":          NotFound,
		"srx":          "SRX",
		"sry":          "SRY",
		"closed":       "DATETIMECLOSED",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultCatalog_CrimeWithoutFirearm(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	header := []string{"Complaint", "DateOccur", "Crime", "Description", "Neighborhood", "XLat", "XLon"}
	cols := cat[SourceCrime].Resolve(header)

	assert.Equal(t, "DateOccur", cols.Column("date"))
	assert.Equal(t, "XLat", cols.Column("lat"))
	assert.False(t, cols.Has("firearm"))
	assert.Equal(t, "", cols.Value(map[string]string{"FirearmUsed": "Y"}, "firearm"))
	assert.Equal(t, "Theft", cols.Value(map[string]string{"Description": "Theft"}, "description"))
}

func TestParse_RejectsEmptyRule(t *testing.T) {
	_, err := Parse([]byte("csb:\n  date: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csb.date")

	_, err = Parse([]byte("csb: [not, a, map]"))
	require.Error(t, err)
}

func TestLoad_OverridesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
csb:
  date:
    exact: [OPENED]
`), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Opened", cat[SourceServiceRequests].Resolve([]string{"DateTimeInit", "Opened"}).Column("date"))
	assert.NotContains(t, cat[SourceServiceRequests], "category")
	assert.Contains(t, cat, SourceCrime, "untouched sources keep defaults")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Contains(t, def[SourceServiceRequests], "category")
}

func TestColumns_LogAttrs(t *testing.T) {
	cols := Columns{"b": "B", "a": NotFound}
	assert.Equal(t, []any{"a", "-", "b", "B"}, cols.LogAttrs())
}
