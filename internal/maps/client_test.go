package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDistanceByPostalCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "64000,Mexico", r.URL.Query().Get("origins"))
		require.Equal(t, "44100,Mexico", r.URL.Query().Get("destinations"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"rows": [{"elements": [{"status": "OK", "distance": {"value": 789500}, "duration": {"value": 28800}}]}]
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", time.Second).WithBaseURL(server.URL)
	dist, err := client.DistanceByPostalCode(context.Background(), "64000", "44100")
	require.NoError(t, err)
	require.InDelta(t, 789.5, dist.KM, 0.001)
	require.InDelta(t, 480.0, dist.DurationMin, 0.001)
}

func TestDistanceByPostalCodeNoRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"rows": [{"elements": [{"status": "ZERO_RESULTS"}]}]
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", time.Second).WithBaseURL(server.URL)
	_, err := client.DistanceByPostalCode(context.Background(), "64000", "99999")
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestDistanceByPostalCodeUnconfigured(t *testing.T) {
	client := NewClient("", time.Second)
	_, err := client.DistanceByPostalCode(context.Background(), "64000", "44100")
	require.ErrorIs(t, err, ErrNotConfigured)
}
