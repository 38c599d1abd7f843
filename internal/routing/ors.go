package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/tripview/internal/models"
)

// ErrRateLimited is returned when the directions service answers HTTP 429.
var ErrRateLimited = errors.New("directions service rate limited")

// ErrNoRoute is returned when the service answers successfully but carries
// no usable geometry.
var ErrNoRoute = errors.New("directions service returned no route")

// DirectionsClient resolves road geometry through an ordered list of
// waypoints.
type DirectionsClient interface {
	Directions(ctx context.Context, points []models.Coord) ([]models.Coord, error)
}

// ORSClient performs directions lookups against an openrouteservice-style
// HTTP endpoint. Requests are POSTed as GeoJSON coordinate lists (lon,lat
// order) with the credential in the Authorization header.
type ORSClient struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewORSClient(endpoint, apiKey string) *ORSClient {
	return &ORSClient{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (o *ORSClient) Directions(ctx context.Context, points []models.Coord) ([]models.Coord, error) {
	if len(points) < 2 {
		return nil, ErrNoRoute
	}
	coords := make([][2]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, [2]float64{p.Lon, p.Lat})
	}
	body, err := json.Marshal(map[string]any{"coordinates": coords, "instructions": false})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", o.APIKey)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("directions request failed: status %d", resp.StatusCode)
	}

	var out struct {
		Features []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Features) == 0 {
		return nil, ErrNoRoute
	}

	raw := out.Features[0].Geometry.Coordinates
	geom := make([]models.Coord, 0, len(raw))
	for _, c := range raw {
		if len(c) < 2 {
			continue
		}
		// GeoJSON carries lon,lat pairs.
		geom = append(geom, models.Coord{Lat: c[1], Lon: c[0]})
	}
	if len(geom) < 2 {
		return nil, ErrNoRoute
	}
	return geom, nil
}
