package seoscan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrInt(i int) *int { return &i }

func TestBusinessSeoPpc_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scan", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body scanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme.com", body.Domain)

		snap := SeoPpcSnapshot{
			SerpPosition: ptrInt(4),
			Schemas:      map[string]string{"localBusiness": "Present", "faq": "Missing"},
			Analytics:    map[string]string{"googleAnalytics": "Present"},
		}
		snap.SpeedScores.Desktop = ptrInt(85)
		snap.PPCStatus.RunningAds = true
		snap.PPCStatus.AdCount = 2

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	snap, err := client.BusinessSeoPpc(context.Background(), "acme.com", "Springfield, IL")

	require.NoError(t, err)
	require.NotNil(t, snap.SerpPosition)
	assert.Equal(t, 4, *snap.SerpPosition)
	assert.Equal(t, "Present", snap.Schemas["localBusiness"])
	require.NotNil(t, snap.SpeedScores.Desktop)
	assert.Equal(t, 85, *snap.SpeedScores.Desktop)
	// Mobile was not measured; it stays unknown.
	assert.Nil(t, snap.SpeedScores.Mobile)
	assert.True(t, snap.PPCStatus.RunningAds)
	assert.Equal(t, 2, snap.PPCStatus.AdCount)
}

func TestBusinessSeoPpc_UnrankedDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"serp_position": null, "speed_scores": {}, "ppc_status": {"running_ads": false, "ad_count": 0}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	snap, err := client.BusinessSeoPpc(context.Background(), "obscure.com", "")

	require.NoError(t, err)
	assert.Nil(t, snap.SerpPosition)
	assert.False(t, snap.PPCStatus.RunningAds)
}

func TestBusinessSeoPpc_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream crawler unavailable`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.BusinessSeoPpc(context.Background(), "acme.com", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}
