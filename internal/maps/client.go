// Package maps resolves road distances between Mexican postal codes
// using the Google Distance Matrix API.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// Sentinel errors for the maps module.
var (
	ErrNotConfigured = errors.New("maps: api key not configured")
	ErrNoRoute       = errors.New("maps: no route between postal codes")
)

// Distance is a resolved road distance between two points.
type Distance struct {
	KM          float64 `json:"km"`
	DurationMin float64 `json:"duration_min"`
	OriginCP    string  `json:"origin_cp"`
	DestCP      string  `json:"dest_cp"`
}

// Client calls the Distance Matrix API. A zero-key client is valid and
// reports ErrNotConfigured, so callers can degrade gracefully.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a Client with the given key and request timeout.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// DistanceByPostalCode resolves the driving distance between two Mexican
// postal codes. Either both distance and duration resolve, or the call
// fails; partial results are never returned.
func (c *Client) DistanceByPostalCode(ctx context.Context, originCP, destCP string) (Distance, error) {
	if !c.Configured() {
		return Distance{}, ErrNotConfigured
	}
	if originCP == "" || destCP == "" {
		return Distance{}, errors.New("maps: both postal codes are required")
	}

	params := url.Values{}
	params.Set("origins", originCP+",Mexico")
	params.Set("destinations", destCP+",Mexico")
	params.Set("mode", "driving")
	params.Set("units", "metric")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Distance{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Distance{}, fmt.Errorf("maps: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Distance{}, fmt.Errorf("maps: unexpected status %d", resp.StatusCode)
	}

	var payload matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Distance{}, fmt.Errorf("maps: decode response: %w", err)
	}
	if payload.Status != "OK" {
		return Distance{}, fmt.Errorf("maps: api status %s", payload.Status)
	}
	if len(payload.Rows) == 0 || len(payload.Rows[0].Elements) == 0 {
		return Distance{}, ErrNoRoute
	}
	element := payload.Rows[0].Elements[0]
	if element.Status != "OK" {
		return Distance{}, ErrNoRoute
	}

	return Distance{
		KM:          float64(element.Distance.Value) / 1000.0,
		DurationMin: float64(element.Duration.Value) / 60.0,
		OriginCP:    originCP,
		DestCP:      destCP,
	}, nil
}
