// Package places is a thin client for the local-pack search provider.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.localpack.example.com/v1"

// Client performs local-pack provider operations.
type Client interface {
	// NearbySearch returns the ranked local-pack businesses for a query at
	// a location, in provider ranking order.
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error)
}

// NearbySearchRequest describes a local-pack query.
type NearbySearchRequest struct {
	Query    string   `json:"query"`
	Location string   `json:"location"`
	Filters  []string `json:"filters,omitempty"`
}

// NearbySearchResponse is the provider's ranked result list.
type NearbySearchResponse struct {
	Businesses []RawBusiness `json:"businesses"`
}

// RawBusiness is a loosely-typed local-pack record as the provider returns
// it. Field values are normalized by the signal package before scoring;
// nothing downstream of the normalizer touches this type.
type RawBusiness struct {
	PlaceID     string   `json:"place_id,omitempty"`
	Name        string   `json:"name"`
	Website     string   `json:"website,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Address     string   `json:"address,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Rank        int      `json:"rank,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a local-pack provider client. The API key is supplied
// explicitly at wiring time; nothing here reads ambient credential state.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) NearbySearch(ctx context.Context, searchReq NearbySearchRequest) (*NearbySearchResponse, error) {
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/nearby:search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result NearbySearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return &result, nil
}
