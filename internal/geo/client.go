package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPNormalizer calls a geocoding endpoint that accepts ?q=<location> and
// answers {"lat": ..., "lng": ...}. Non-200 responses resolve to nil
// coordinates rather than an error so callers degrade uniformly.
type HTTPNormalizer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPNormalizer(endpoint string) *HTTPNormalizer {
	return &HTTPNormalizer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 3 * time.Second},
	}
}

func (n *HTTPNormalizer) Normalize(ctx context.Context, locationText string) (*Coordinates, error) {
	if locationText == "" {
		return nil, nil
	}

	reqURL := n.endpoint + "?q=" + url.QueryEscape(locationText)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var coords Coordinates
	if err := json.NewDecoder(resp.Body).Decode(&coords); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	return &coords, nil
}
