package sourceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/retry"
)

// GraceDBClient fetches gravitational-wave superevent state from a
// GraceDB-style REST API.
type GraceDBClient struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
}

// NewGraceDBClient creates a client for the given base URL
// (e.g. https://gracedb.ligo.org/api).
func NewGraceDBClient(baseURL string) *GraceDBClient {
	return &GraceDBClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		retry:   retry.DefaultConfig(),
	}
}

// supereventResponse is the subset of the GraceDB superevent resource this
// service consumes.
type supereventResponse struct {
	SupereventID string `json:"superevent_id"`
	Category     string `json:"category"`
	Preferred    string `json:"preferred_event"`
}

// GetCanonicalReport fetches the superevent's current authoritative state.
func (c *GraceDBClient) GetCanonicalReport(ctx context.Context, externalID string) (*events.RawReport, error) {
	var resp supereventResponse
	if err := c.getJSON(ctx, "/superevents/"+url.PathEscape(externalID)+"/", &resp); err != nil {
		return nil, err
	}
	return &events.RawReport{
		EventID:      resp.SupereventID,
		EventType:    "GRAVITATIONAL_WAVE",
		EventSubtype: resp.Category,
	}, nil
}

// GetPresentationExtras fetches supplementary display data for the
// superevent: the files published alongside it (sky maps, circulars) as a
// filename to URL listing, distinct from the canonical superevent record.
func (c *GraceDBClient) GetPresentationExtras(ctx context.Context, externalID string) (map[string]any, error) {
	var files map[string]any
	if err := c.getJSON(ctx, "/superevents/"+url.PathEscape(externalID)+"/files/", &files); err != nil {
		return nil, err
	}
	return map[string]any{"files": files}, nil
}

// getJSON performs a GET with retry on transient failures and maps HTTP
// outcomes onto the package's error taxonomy.
func (c *GraceDBClient) getJSON(ctx context.Context, path string, out any) error {
	return retry.WithRetry(ctx, c.retry, "gracedb get "+path, isTransient, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%w: unexpected status %d", ErrSourceMalformed, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", ErrSourceMalformed, err)
		}
		return nil
	})
}

// isTransient reports whether the error is worth retrying. Only source
// unavailability is transient; not-found and malformed responses are
// permanent for a given request.
func isTransient(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}
