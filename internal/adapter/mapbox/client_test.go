package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, timeout time.Duration) (*Client, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    m,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, m
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "1200 MARKET ST, St. Louis, MO")
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "address", q.Get("types"))
		assert.Equal(t, stLouisBBox, q.Get("bbox"))
		assert.Equal(t, testToken, q.Get("access_token"))

		resp := response{Features: []feature{{
			Center:    []float64{-90.1994, 38.6270},
			PlaceName: "1200 Market Street, St. Louis, Missouri 63103, United States",
			Relevance: 0.97,
		}}}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, 5*time.Second)
	result, err := c.ForwardGeocode(context.Background(), "1200 MARKET ST", domain.GeocodeCity)
	require.NoError(t, err)

	assert.Equal(t, 38.6270, result.Lat)
	assert.Equal(t, -90.1994, result.Lon)
	assert.Contains(t, result.FormattedAddress, "1200 Market Street")
	assert.Equal(t, 0.97, result.Confidence)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("success")))
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, 5*time.Second)
	result, err := c.ForwardGeocode(context.Background(), "0 NOWHERE AVE", domain.GeocodeCity)
	require.NoError(t, err)
	assert.Equal(t, domain.GeocodingResult{}, result)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("empty")))
}

func TestClient_ForwardGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, 5*time.Second)
	_, err := c.ForwardGeocode(context.Background(), "1200 MARKET ST", domain.GeocodeCity)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("error")))
}

func TestClient_ForwardGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.ForwardGeocode(context.Background(), "1200 MARKET ST", domain.GeocodeCity)
	require.Error(t, err)
}
