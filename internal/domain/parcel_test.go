package domain

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOwner(t *testing.T) {
	tests := []struct {
		name string
		want Owner
	}{
		{"LRA", OwnerLRA},
		{"land reutilization authority", OwnerLRA},
		{"LRA OF THE CITY OF ST. LOUIS", OwnerLRA},
		{"CITY OF ST LOUIS", OwnerCity},
		{"ST. LOUIS DEVELOPMENT CORP", OwnerCity},
		{"Saint Louis Housing Authority", OwnerCity},
		{"JANE ROE", OwnerPrivate},
		{"", OwnerPrivate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyOwner(tt.name), "owner %q", tt.name)
	}
}

func TestParcel_PropertyType(t *testing.T) {
	assert.Equal(t, PropertyLot, Parcel{BuildingCount: 0}.PropertyType())
	assert.Equal(t, PropertyLot, Parcel{BuildingCount: 2, VacantLot: true}.PropertyType())
	assert.Equal(t, PropertyBuilding, Parcel{BuildingCount: 1}.PropertyType())
}

func TestParcel_Defaults(t *testing.T) {
	p := Parcel{}
	assert.Equal(t, 3000, p.EffectiveLotSqFt())
	assert.Equal(t, "B", p.EffectiveZoning())

	p = Parcel{LotSqFt: 4500, Zoning: " C "}
	assert.Equal(t, 4500, p.EffectiveLotSqFt())
	assert.Equal(t, "C", p.EffectiveZoning())
}

func TestDecodeOverview_PreservesOrderAndCoerces(t *testing.T) {
	in := `{
		"B2": {"mo": 3, "vmin": "4", "vmaj": 2, "csb": null, "unpd": "125.50"},
		"A1": {"vmin": 1.0, "vmaj": "NULL", "csb": 7},
		"C3": {}
	}`

	got, err := DecodeOverview(strings.NewReader(in))
	require.NoError(t, err)

	want := []OverviewEntry{
		{Handle: "B2", Overview: ViolationOverview{Minor: 4, Major: 2, Complaints: 0, UnpaidFines: 125.5}},
		{Handle: "A1", Overview: ViolationOverview{Minor: 1, Major: 0, Complaints: 7}},
		{Handle: "C3", Overview: ViolationOverview{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeOverview mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeOverview_Errors(t *testing.T) {
	_, err := DecodeOverview(strings.NewReader(`[1,2]`))
	require.Error(t, err)

	_, err = DecodeOverview(strings.NewReader(`{"A": {"vmin": 1}`))
	require.Error(t, err)
}

func TestViolationOverview_Total(t *testing.T) {
	assert.Equal(t, 7, ViolationOverview{Minor: 3, Major: 4}.Total())
}

func TestNewVacancy(t *testing.T) {
	p := Parcel{
		Handle:        "1234",
		ParcelID:      "P-1234",
		Address:       "4100 EASTON AVE",
		Zip:           "63113",
		Ward:          4,
		Neighborhood:  "55",
		Location:      Location{Lat: 38.65432198, Lng: -90.23456789},
		OwnerName:     "LRA",
		AssessedValue: 1200,
		YearBuilt:     1905,
		BuildingCount: 1,
	}
	v := ViolationOverview{Minor: 2, Major: 10, Complaints: 1}
	s := Score(p, v)

	got := NewVacancy(7, p, v, s)

	assert.Equal(t, 7, got.ID)
	assert.Equal(t, 38.654322, got.Lat)
	assert.Equal(t, -90.234568, got.Lng)
	assert.Equal(t, PropertyBuilding, got.PropertyType)
	assert.Equal(t, OwnerLRA, got.Owner)
	assert.Equal(t, 3000, got.LotSqFt)
	assert.Equal(t, "B", got.Zoning)
	assert.True(t, got.Condemned)
	assert.Equal(t, 12, got.ViolationCount)
	require.NotNil(t, got.YearBuilt)
	assert.Equal(t, 1905, *got.YearBuilt)
	assert.NotNil(t, got.RecentComplaints)
	assert.Empty(t, got.RecentComplaints)
	assert.Equal(t, s.Composite, got.TriageScore)
	assert.Equal(t, s.SubScores, got.ScoreBreakdown)
	assert.Equal(t, "Vacant Building", got.VacancyCategory)

	noYear := NewVacancy(1, Parcel{}, ViolationOverview{}, Score(Parcel{}, ViolationOverview{}))
	assert.Nil(t, noYear.YearBuilt)
}

func TestLocation(t *testing.T) {
	assert.True(t, Location{Lat: 38.63, Lng: -90.2}.InStLouis())
	assert.False(t, Location{Lat: -90.2, Lng: 38.63}.InStLouis())
	assert.False(t, Location{}.InStLouis())
	assert.True(t, Location{}.IsZero())

	loc := WebMercatorToLocation(-10041000, 4668000)
	assert.InDelta(t, -90.199, loc.Lng, 0.01)
	assert.InDelta(t, 38.627, loc.Lat, 0.01)

	origin := WebMercatorToLocation(0, 0)
	assert.InDelta(t, 0, origin.Lat, 1e-12)
	assert.InDelta(t, 0, origin.Lng, 1e-12)
}
