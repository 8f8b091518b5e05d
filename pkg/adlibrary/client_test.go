package adlibrary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessAds_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ads", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "acme.com", r.URL.Query().Get("business_id"))
		assert.Equal(t, "Springfield, IL", r.URL.Query().Get("location"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AdsSnapshot{
			IsRunningAds: true,
			TotalAds:     3,
			Ads: []AdRecord{
				{ID: "ad-1", Platform: "search", Headline: "Fast local plumbing"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	snap, err := client.BusinessAds(context.Background(), "acme.com", "Springfield, IL")

	require.NoError(t, err)
	assert.True(t, snap.IsRunningAds)
	assert.Equal(t, 3, snap.TotalAds)
	require.Len(t, snap.Ads, 1)
	assert.Equal(t, "ad-1", snap.Ads[0].ID)
}

func TestBusinessAds_OmitsEmptyLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasLocation := r.URL.Query()["location"]
		assert.False(t, hasLocation)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AdsSnapshot{})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	snap, err := client.BusinessAds(context.Background(), "acme.com", "")

	require.NoError(t, err)
	assert.False(t, snap.IsRunningAds)
	assert.Zero(t, snap.TotalAds)
}

func TestBusinessAds_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.BusinessAds(context.Background(), "acme.com", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}
