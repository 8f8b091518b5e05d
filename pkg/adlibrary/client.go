// Package adlibrary is a thin client for the advertising-activity provider.
package adlibrary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.adlibrary.example.com/v1"

// Client performs ad-activity lookups.
type Client interface {
	// BusinessAds returns the observed advertising activity for a business.
	BusinessAds(ctx context.Context, businessID, location string) (*AdsSnapshot, error)
}

// AdsSnapshot is the provider's view of a business's advertising activity.
type AdsSnapshot struct {
	IsRunningAds bool       `json:"is_running_ads"`
	TotalAds     int        `json:"total_ads"`
	Ads          []AdRecord `json:"ads,omitempty"`
}

// AdRecord describes a single observed ad creative.
type AdRecord struct {
	ID        string `json:"id"`
	Platform  string `json:"platform,omitempty"`
	Headline  string `json:"headline,omitempty"`
	FirstSeen string `json:"first_seen,omitempty"`
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

// NewClient creates an ad-activity provider client.
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

func (c *httpClient) BusinessAds(ctx context.Context, businessID, location string) (*AdsSnapshot, error) {
	q := url.Values{}
	q.Set("business_id", businessID)
	if location != "" {
		q.Set("location", location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ads?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "adlibrary: create request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "adlibrary: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "adlibrary: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("adlibrary: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result AdsSnapshot
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "adlibrary: unmarshal response")
	}

	return &result, nil
}
