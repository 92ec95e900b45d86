package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
)

func TestSpending(t *testing.T) {
	rc := newRunContext(t)
	writeRaw(t, rc, "arpa.json", `{"data":[
		{"AMOUNT":"1000.50","PROJECTTITLE":"COVID Vaccine Clinic","PROJECTID":"12","VENDOR":"Acme","DATE":"January, 15 2024 00:00:00"},
		{"AMOUNT":250,"PROJECTTITLE":"","PROJECTID":12,"VENDOR":"Acme","DATE":"2/3/2024"},
		{"AMOUNT":"2000","PROJECTTITLE":"Road Repair","PROJECTID":"7","VENDOR":"","DATE":""},
		{"AMOUNT":"10","PROJECTTITLE":"Misc","PROJECTID":"x","VENDOR":"Bob","DATE":"2024-02-10"}
	]}`)

	require.NoError(t, Spending{}.Run(context.Background(), rc))

	assert.JSONEq(t, `{
		"totalSpent":3260.5,
		"transactionCount":4,
		"projects":[
			{"id":7,"title":"Road Repair","totalSpent":2000,"category":"Infrastructure"},
			{"id":12,"title":"COVID Vaccine Clinic","totalSpent":1250.5,"category":"Health"},
			{"id":0,"title":"Misc","totalSpent":10,"category":"Other"}
		],
		"monthlySpending":{"2024-01":1000.5,"2024-02":260},
		"cumulativeSpending":{"2024-01":1000.5,"2024-02":1260.5},
		"topVendors":[{"name":"Acme","totalSpent":1250.5},{"name":"Bob","totalSpent":10}],
		"categoryBreakdown":{"Infrastructure":2000,"Health":1250.5,"Other":10}
	}`, string(readArtifactBytes(t, rc, "arpa.json")))
}

func TestSpending_BareArray(t *testing.T) {
	rc := newRunContext(t)
	writeRaw(t, rc, "arpa.json", `[{"amount":5,"projecttitle":"Internet Access","projectid":"3"}]`)

	require.NoError(t, Spending{}.Run(context.Background(), rc))

	out := readArtifact(t, rc, "arpa.json")
	assert.Equal(t, 5.0, out["totalSpent"])
	assert.Equal(t, map[string]any{"Technology": 5.0}, out["categoryBreakdown"])
}

func TestSpending_UnexpectedFormatSkips(t *testing.T) {
	rc := newRunContext(t)
	writeRaw(t, rc, "arpa.json", `{"records":[]}`)

	err := Spending{}.Run(context.Background(), rc)
	require.ErrorIs(t, err, pipeline.ErrSkipped)
}

func TestCategorizeProject(t *testing.T) {
	tests := []struct{ title, want string }{
		{"COVID-19 Testing", "Health"},
		{"Fire Station Upgrades", "Public Safety"},
		{"Water Main Replacement", "Infrastructure"},
		{"Emergency Rental Assistance", "Housing"},
		{"Small Business Grants", "Economic Recovery"},
		{"Youth Summer Programs", "Community"},
		{"Digital Equity", "Technology"},
		{"Administrative Costs", "Other"},
		{"Health Department Building", "Health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeProject(tt.title), tt.title)
	}
}

func TestDemographics(t *testing.T) {
	rc := newRunContext(t)
	writeRaw(t, rc, "demographics.json", `{
		"5": {
			"name": "Carondelet Census Data",
			"text": "Total Population\n7,734\nWhite alone\n3,334\nBlack or African-American alone\n3,000\nAsian alone\n100\nHispanic or Latino\n200\nSome Other Race alone\n50\nTwo or More Races\n250\n\nTotal Housing Units\n4,000\nOccupied Housing Units\n3,500\nVacant Housing Units\n500",
			"text_2010": "Total Population\n8,000"
		},
		"Atlantis": {"name": "Atlantis", "text": ""}
	}`)

	require.NoError(t, Demographics{}.Run(context.Background(), rc))

	assert.JSONEq(t, `{"05":{
		"name":"Carondelet",
		"population":{"2020":7734,"2010":8000,"2000":0},
		"race":{"white":3334,"black":3000,"asian":100,"hispanic":200,"other":300},
		"housing":{"totalUnits":4000,"occupied":3500,"vacant":500,"vacancyRate":12.5,"ownerOccupied":0,"renterOccupied":0},
		"popChange10to20":-3.3
	}}`, string(readArtifactBytes(t, rc, "demographics.json")))
}

func TestLabelValues(t *testing.T) {
	got := labelValues("Header\nTotal Population\n 1,234 \nNot a number\nn/a\nDeficit\n-12\nTotal Population\n99")
	assert.Equal(t, map[string]int{
		"total population": 99,
		"deficit":          -12,
	}, got)
}

func TestHousing(t *testing.T) {
	rc := newRunContext(t)
	writeNeighborhoods(t, rc)
	writeTracts(t, rc)
	writeRaw(t, rc, "housing_acs.json", `[
		["NAME","B25064_001E","B25077_001E","state","county","tract"],
		["Tract 1011","900","150000","29","510","101100"],
		["Tract 1012","-666666666","200000","29","510","101200"],
		["Tract X","1100",null,"29","510","999999"]
	]`)

	require.NoError(t, Housing{}.Run(context.Background(), rc))

	assert.JSONEq(t, `{
		"year":2022,
		"cityMedianRent":1100,
		"cityMedianHomeValue":200000,
		"neighborhoods":{
			"05":{"name":"Carondelet","medianRent":900,"medianHomeValue":150000,"tractCount":1},
			"39":{"name":"Tower Grove South","medianRent":900,"medianHomeValue":175000,"tractCount":2}
		}
	}`, string(readArtifactBytes(t, rc, "housing.json")))
}

func TestHousing_NoEstimates(t *testing.T) {
	rc := newRunContext(t)
	writeNeighborhoods(t, rc)
	writeTracts(t, rc)
	writeRaw(t, rc, "housing_acs.json", `[["NAME","B25064_001E","B25077_001E","state","county","tract"]]`)

	require.NoError(t, Housing{}.Run(context.Background(), rc))

	out := readArtifact(t, rc, "housing.json")
	assert.Nil(t, out["cityMedianRent"])
	hood := out["neighborhoods"].(map[string]any)["39"].(map[string]any)
	assert.Nil(t, hood["medianRent"])
	assert.Equal(t, 2.0, hood["tractCount"])
}

func TestUpperMedian(t *testing.T) {
	assert.Nil(t, upperMedian(nil))
	assert.Equal(t, 2, *upperMedian([]int{3, 1, 2}))
	assert.Equal(t, 3, *upperMedian([]int{4, 1, 3, 2}))
}
