package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/tripview/internal/models"
)

// Fetcher retrieves the trip snapshot from the backend. Any failure —
// transport error, non-2xx status, malformed payload — is "no update this
// cycle": the caller keeps its previously rendered state.
type Fetcher struct {
	Endpoint string
	Client   *http.Client

	validate *validator.Validate
}

func NewFetcher(endpoint string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{Endpoint: endpoint, Client: client, validate: validator.New()}
}

type snapshotEnvelope struct {
	Status    string               `json:"status"`
	Itinerary *models.TripSnapshot `json:"itinerary"`
}

// Fetch performs one GET against the snapshot endpoint and returns the
// validated, normalized snapshot. A null itinerary decodes to an empty
// snapshot, which the caller treats as "clear all overlays".
func (f *Fetcher) Fetch(ctx context.Context) (*models.TripSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("snapshot fetch: status %d", resp.StatusCode)
	}

	var env snapshotEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("snapshot fetch: decode: %w", err)
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("snapshot fetch: payload status %q", env.Status)
	}

	snap := env.Itinerary
	if snap == nil {
		snap = &models.TripSnapshot{}
	}
	if err := f.validate.Struct(snap); err != nil {
		return nil, fmt.Errorf("snapshot fetch: invalid payload: %w", err)
	}
	snap.Normalize()
	return snap, nil
}
