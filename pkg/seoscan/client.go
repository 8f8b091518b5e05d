// Package seoscan is a thin client for the SEO/PPC technical-signal provider.
package seoscan

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.seoscan.example.com/v1"

// Client performs SEO/PPC technical scans.
type Client interface {
	// BusinessSeoPpc returns SERP, markup, analytics, page-speed and PPC
	// signals for a domain, plus the provider's raw local competitor list.
	BusinessSeoPpc(ctx context.Context, domain, location string) (*SeoPpcSnapshot, error)
}

// SeoPpcSnapshot is the loosely-typed provider payload. Values are strings
// or nullable numbers as the provider emits them; the signal package owns
// turning this into typed BusinessSignals fields.
type SeoPpcSnapshot struct {
	SerpPosition *int `json:"serp_position,omitempty"` // null = not ranked in observed window

	// Schema and analytics flags come back as "Present"/"Missing" strings
	// keyed by flag name.
	Schemas   map[string]string `json:"schemas,omitempty"`
	Analytics map[string]string `json:"analytics,omitempty"`

	SpeedScores struct {
		Desktop *int `json:"desktop,omitempty"`
		Mobile  *int `json:"mobile,omitempty"`
	} `json:"speed_scores"`

	BacklinkCount   *int64 `json:"backlink_count,omitempty"`
	DomainAuthority *int64 `json:"domain_authority,omitempty"`
	MonthlyTraffic  *int64 `json:"monthly_traffic,omitempty"`

	PPCStatus struct {
		RunningAds bool `json:"running_ads"`
		AdCount    int  `json:"ad_count"`
	} `json:"ppc_status"`

	// LocalCompetitors is the provider's ranked nearby-business list, raw.
	LocalCompetitors []LocalCompetitor `json:"local_competitors,omitempty"`
}

// LocalCompetitor is one raw entry from the provider's local-pack view.
type LocalCompetitor struct {
	Name        string   `json:"name"`
	Website     string   `json:"website,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
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

// NewClient creates a SEO/PPC provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type scanRequest struct {
	Domain   string `json:"domain"`
	Location string `json:"location,omitempty"`
}

func (c *httpClient) BusinessSeoPpc(ctx context.Context, domain, location string) (*SeoPpcSnapshot, error) {
	body, err := json.Marshal(scanRequest{Domain: domain, Location: location})
	if err != nil {
		return nil, eris.Wrap(err, "seoscan: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "seoscan: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "seoscan: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "seoscan: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("seoscan: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SeoPpcSnapshot
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "seoscan: unmarshal response")
	}

	return &result, nil
}
