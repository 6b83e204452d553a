package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GoogleMapsProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewGoogleMapsProvider("test-key", maps.WithBaseURL(server.URL))
	require.NoError(t, err)
	return provider
}

func TestReverseGeocode(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("latlng"), "12.9716")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"place_id": "p1",
				"formatted_address": "MG Road, Bengaluru",
				"geometry": {"location": {"lat": 12.9716, "lng": 77.5946}},
				"types": ["street_address"]
			}]
		}`))
	})

	resp, err := provider.ReverseGeocode(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)
	assert.Equal(t, "MG Road, Bengaluru", resp.FormattedAddress())
	assert.Equal(t, "p1", resp.Results[0].PlaceID)
}

func TestGeolocate(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location": {"lat": 19.076, "lng": 72.8777}, "accuracy": 42.5}`))
	})

	resp, err := provider.Geolocate(context.Background(), &GeolocationRequest{ConsiderIP: true})
	require.NoError(t, err)
	assert.InDelta(t, 19.076, resp.Location.Latitude, 1e-9)
	assert.InDelta(t, 72.8777, resp.Location.Longitude, 1e-9)
	assert.InDelta(t, 42.5, resp.Accuracy, 1e-9)
}

func TestFormattedAddressEmpty(t *testing.T) {
	var resp *GeocodeResponse
	assert.Equal(t, "", resp.FormattedAddress())
	assert.Equal(t, "", (&GeocodeResponse{}).FormattedAddress())
}
