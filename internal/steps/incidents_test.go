package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csbFixture = `DATETIMEINIT,PROBLEMCODE,STATUS,NEIGHBORHOOD,SRX,SRY,DATETIMECLOSED
2024-03-04 10:15:00,Trash,Closed,5,-10041000,4668000,2024-03-06 10:15:00
2024-03-05 14:00:00,Trash,Open,5,0,0,
2024-04-01 09:00:00,Potholes,Complete,Tower Grove South,-10041000,4668000,2024-03-01 00:00:00
2023-06-01 08:00:00,Trash,Closed,5,-10041000,4668000,
,,Open,Nowhere,,,
`

func TestServiceRequests(t *testing.T) {
	rc := newRunContext(t)
	writeRaw(t, rc, "csb/2024/requests.csv", csbFixture)

	require.NoError(t, ServiceRequests{}.Run(context.Background(), rc))

	raw := string(readArtifactBytes(t, rc, "csb_2024.json"))
	assert.Contains(t, raw, `"hourly":{"9":1,"10":1,"14":1}`, "hours sort numerically")
	assert.Contains(t, raw, `"weekday":{"0":2,"1":1}`, "Monday is 0")
	assert.Contains(t, raw, `"categories":{"Trash":2,"Potholes":1}`)

	out := readArtifact(t, rc, "csb_2024.json")
	assert.Equal(t, 2024.0, out["year"])
	assert.Equal(t, 3.0, out["totalRequests"], "only rows of the data year are counted")
	assert.Equal(t, map[string]any{"2024-03-04": 1.0, "2024-03-05": 1.0, "2024-04-01": 1.0}, out["dailyCounts"])
	assert.Equal(t, map[string]any{
		"2024-03": map[string]any{"Trash": 2.0},
		"2024-04": map[string]any{"Potholes": 1.0},
	}, out["monthly"])

	hoods := out["neighborhoods"].(map[string]any)
	assert.Equal(t, map[string]any{
		"name":              "Carondelet",
		"total":             2.0,
		"closed":            1.0,
		"avgResolutionDays": 2.0,
		"topCategories":     map[string]any{"Trash": 2.0},
	}, hoods["05"])
	tgs := hoods["39"].(map[string]any)
	assert.Equal(t, 1.0, tgs["closed"], "complete counts as closed")
	assert.Equal(t, 0.0, tgs["avgResolutionDays"], "close before open is ignored")

	points := out["heatmapPoints"].([]any)
	require.Len(t, points, 3, "heatmap spans all years and needs a location")
	last := points[2].([]any)
	assert.InDelta(t, 38.624, last[0].(float64), 0.01)
	assert.InDelta(t, -90.2, last[1].(float64), 0.01)
	assert.Equal(t, []any{"Trash", "2023-06-01", "05"}, last[2:])

	assert.Equal(t, readArtifactBytes(t, rc, "csb_2024.json"), readArtifactBytes(t, rc, "csb_latest.json"))

	assert.JSONEq(t, `{
		"yearlyMonthly":{"2023":{"2023-06":1},"2024":{"2024-03":2,"2024-04":1}},
		"yearlyCategories":{"2023":{"Trash":1},"2024":{"Trash":2,"Potholes":1}},
		"weather":{}
	}`, string(readArtifactBytes(t, rc, "trends.json")))

	var names []string
	for _, a := range rc.Out.Take() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"csb_2024.json", "csb_latest.json", "trends.json"}, names)
}

func TestServiceRequests_FallsBackToAllRows(t *testing.T) {
	rc := newRunContext(t)
	rc.Year = 2030
	writeRaw(t, rc, "csb/requests.csv", csbFixture)

	require.NoError(t, ServiceRequests{}.Run(context.Background(), rc))

	out := readArtifact(t, rc, "csb_2030.json")
	assert.Equal(t, 5.0, out["totalRequests"])
	assert.Equal(t, 1.0, out["categories"].(map[string]any)["Unknown"])
}

const crimeFixture = `DateOccur,Crime,Description,Neighborhood,FelMisCit,FirearmUsed,XLat,XLon
01/15/2024 11:30:00 PM,10000,Homicide,5,FEL,Y,38.6,-90.25
01/16/2024 01:00:00 AM,20000,,Carondelet,MISD,N,0,0
02/01/2024 12:00:00 PM,,Larceny,,FELONY,YES,,
12/31/2023 10:00:00 AM,30000,Burglary,39,FEL,N,38.61,-90.24
`

func TestCrime(t *testing.T) {
	rc := newRunContext(t)
	writeRaw(t, rc, "crime/slmpd.csv", crimeFixture)

	require.NoError(t, Crime{}.Run(context.Background(), rc))

	raw := string(readArtifactBytes(t, rc, "crime.json"))
	assert.Contains(t, raw, `"hourly":{"1":1,"12":1,"23":1}`)
	assert.Contains(t, raw, `"categories":{"Homicide":1,"20000":1,"Larceny":1}`, "description first, else crime code")

	out := readArtifact(t, rc, "crime.json")
	assert.Equal(t, 3.0, out["totalIncidents"])
	assert.Equal(t, 2.0, out["totalFelonies"])
	assert.Equal(t, 2.0, out["totalFirearms"])

	hoods := out["neighborhoods"].(map[string]any)
	require.Len(t, hoods, 1)
	assert.Equal(t, map[string]any{
		"name":             "Carondelet",
		"total":            2.0,
		"topOffenses":      map[string]any{"Homicide": 1.0, "20000": 1.0},
		"felonies":         1.0,
		"firearmIncidents": 1.0,
	}, hoods["05"])

	assert.Equal(t, []any{
		[]any{38.6, -90.25, "Homicide", "2024-01-15", "05"},
	}, out["heatmapPoints"])
}

func TestCrime_FallsBackToAllRows(t *testing.T) {
	rc := newRunContext(t)
	rc.Year = 2030
	writeRaw(t, rc, "crime/slmpd.csv", crimeFixture)

	require.NoError(t, Crime{}.Run(context.Background(), rc))

	out := readArtifact(t, rc, "crime.json")
	assert.Equal(t, 4.0, out["totalIncidents"])
	assert.Len(t, out["heatmapPoints"], 2)
	assert.Contains(t, out["neighborhoods"], "39")
}
