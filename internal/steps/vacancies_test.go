package steps

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
)

type recordingLoader struct {
	batches [][]domain.Vacancy
	err     error
}

func (l *recordingLoader) LoadBatch(_ context.Context, v []domain.Vacancy) error {
	if l.err != nil {
		return l.err
	}
	l.batches = append(l.batches, append([]domain.Vacancy(nil), v...))
	return nil
}

var parcelFields = []shp.Field{
	shp.StringField("HANDLE", 12),
	shp.StringField("ParcelId", 12),
	shp.StringField("SITEADDR", 40),
	shp.StringField("OWNERNAME", 40),
	shp.NumberField("WARD", 4),
	shp.NumberField("NBRHD", 4),
	shp.NumberField("ZIP", 6),
	shp.NumberField("SQFT", 8),
	shp.StringField("Zoning", 4),
	shp.NumberField("AsdTotal", 10),
	shp.NumberField("TaxBalance", 10),
	shp.NumberField("FirstYearB", 4),
	shp.NumberField("NbrOfBldgs", 4),
	shp.NumberField("VacantLot", 2),
	shp.StringField("LowAddrNum", 8),
	shp.StringField("StName", 20),
	shp.StringField("StType", 6),
}

func writeVacancyFixture(t *testing.T, rc *pipeline.RunContext) {
	t.Helper()
	writeShapefile(t, rc.Raw("parcels", "PARCELS", "PARCELS.shp"), parcelFields, []shpRecord{
		{
			ring:  square(-90.2505, 38.6, 0.001),
			attrs: []any{"1001", "P-1001", "", "LAND REUTILIZATION AUTH", 9, 5, 63118, 5000, "", 0, 0, 0, 0, 1, "3500", "GRAND", "BLVD"},
		},
		{
			ring:  square(10, 10, 0.001),
			attrs: []any{"1002", "", "1 MAIN ST", "JOHN DOE", 1, 1, 63101, 2000, "B", 10000, 1600, 1910, 1, 0, "", "", ""},
		},
	})
}

const overviewFixture = `{
	"1001": {"vmin": 1, "vmaj": 0, "csb": 2, "unpd": 0},
	"9999": {"vmin": 3, "vmaj": 3, "csb": 0, "unpd": 0},
	"1002": {"vmin": "0", "vmaj": "12", "csb": 0, "unpd": null}
}`

func TestVacancies(t *testing.T) {
	rc := newRunContext(t)
	writeVacancyFixture(t, rc)
	writeRaw(t, rc, "vacancies/vacancy_overview.json", overviewFixture)
	loader := &recordingLoader{}
	rc.Loader = loader
	rc.BatchSize = 10

	require.NoError(t, Vacancies{}.Run(context.Background(), rc))

	var got []domain.Vacancy
	require.NoError(t, json.Unmarshal(readArtifactBytes(t, rc, VacanciesArtifact), &got))
	require.Len(t, got, 1, "unmatched and out-of-city parcels are dropped")

	v := got[0]
	assert.Equal(t, 1, v.ID)
	assert.Equal(t, "P-1001", v.ParcelID)
	assert.Equal(t, "3500 GRAND BLVD", v.Address, "address assembled from parts")
	assert.Equal(t, "63118", v.Zip)
	assert.Equal(t, 9, v.Ward)
	assert.Equal(t, domain.NeighborhoodID("05"), v.Neighborhood)
	assert.InDelta(t, 38.6005, v.Lat, 1e-6)
	assert.InDelta(t, -90.25, v.Lng, 1e-6)
	assert.Equal(t, domain.OwnerLRA, v.Owner)
	assert.Equal(t, domain.PropertyLot, v.PropertyType)
	assert.Equal(t, "B", v.Zoning)
	assert.Equal(t, 5000, v.LotSqFt)
	assert.Nil(t, v.YearBuilt)
	assert.Equal(t, 100, v.ScoreBreakdown.Ownership)
	assert.Equal(t, 60, v.ProximityScore)
	assert.Equal(t, 1, v.ViolationCount)

	require.Len(t, loader.batches, 1)
	assert.Equal(t, got, loader.batches[0])
}

func TestVacancies_PublishFailureFailsStep(t *testing.T) {
	rc := newRunContext(t)
	writeVacancyFixture(t, rc)
	writeRaw(t, rc, "vacancies/vacancy_overview.json", overviewFixture)
	rc.Loader = &recordingLoader{err: errors.New("broker down")}

	err := Vacancies{}.Run(context.Background(), rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.FileExists(t, rc.Out.Path(VacanciesArtifact), "artifact is written before publishing")
}

func TestVacancies_InvalidWeights(t *testing.T) {
	rc := newRunContext(t)
	w := domain.DefaultWeights()
	w.Condition = 0.9

	err := Vacancies{weights: &w}.Run(context.Background(), rc)
	require.Error(t, err)
}

func TestVacancies_WeightsOverride(t *testing.T) {
	rc := newRunContext(t)
	writeVacancyFixture(t, rc)
	writeRaw(t, rc, "vacancies/vacancy_overview.json", overviewFixture)
	w := domain.Weights{Ownership: 1}

	require.NoError(t, Vacancies{weights: &w}.Run(context.Background(), rc))

	var got []domain.Vacancy
	require.NoError(t, json.Unmarshal(readArtifactBytes(t, rc, VacanciesArtifact), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].TriageScore, "LRA ownership alone carries the composite")
}
