//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "1200 MARKET ST", domain.GeocodeCity)
	require.NoError(t, err)

	assert.InDelta(t, 38.627, result.Lat, 0.05, "lat should be near City Hall")
	assert.InDelta(t, -90.199, result.Lon, 0.05, "lon should be near City Hall")
	assert.True(t, domain.Location{Lat: result.Lat, Lng: result.Lon}.InStLouis())
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	cached := NewCachedGeocoder(smokeClient(t), 10, observability.NewMetricsForTesting())

	r1, err := cached.ForwardGeocode(context.Background(), "3500 GRAND BLVD", domain.GeocodeCity)
	require.NoError(t, err)
	r2, err := cached.ForwardGeocode(context.Background(), "3500 GRAND BLVD", domain.GeocodeCity)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, cached.Len())
}
