package enrich

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/recommend"
	"github.com/sells-group/leadscope/internal/signal"
	"github.com/sells-group/leadscope/internal/store"
	"github.com/sells-group/leadscope/pkg/adlibrary"
	"github.com/sells-group/leadscope/pkg/places"
	"github.com/sells-group/leadscope/pkg/seoscan"
)

type fakePlaces struct {
	mu      sync.Mutex
	calls   int
	fn      func(call int) (*places.NearbySearchResponse, error)
	started chan struct{}
	release chan struct{}
}

func (f *fakePlaces) NearbySearch(ctx context.Context, req places.NearbySearchRequest) (*places.NearbySearchResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if call == 1 && f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.fn(call)
}

type fakeAds struct {
	snap *adlibrary.AdsSnapshot
	err  error
}

func (f *fakeAds) BusinessAds(ctx context.Context, businessID, location string) (*adlibrary.AdsSnapshot, error) {
	return f.snap, f.err
}

type fakeSeo struct {
	mu      sync.Mutex
	calls   int
	snap    *seoscan.SeoPpcSnapshot
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSeo) BusinessSeoPpc(ctx context.Context, domain, location string) (*seoscan.SeoPpcSnapshot, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first && f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.snap, f.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptrFloat(f float64) *float64 { return &f }
func ptrInt(i int) *int           { return &i }

func subjectResponse(reviews int) *places.NearbySearchResponse {
	return &places.NearbySearchResponse{Businesses: []places.RawBusiness{
		{
			Name:        "Acme Plumbing",
			Website:     "https://www.acmeplumbing.com",
			Phone:       "555-0100",
			Address:     "12 Main St",
			Rating:      ptrFloat(4.8),
			ReviewCount: ptrInt(reviews),
			Rank:        1,
		},
		{
			Name:        "Rival Plumbing",
			Website:     "https://rivalplumbing.com",
			Rating:      ptrFloat(4.0),
			ReviewCount: ptrInt(40),
			Rank:        2,
		},
	}}
}

func fastLimits() Limits {
	return Limits{PlacesRPS: 1000, AdsRPS: 1000, SeoRPS: 1000}
}

func TestEnrich_FullRun(t *testing.T) {
	st := newTestStore(t)
	pl := &fakePlaces{fn: func(int) (*places.NearbySearchResponse, error) { return subjectResponse(120), nil }}
	ads := &fakeAds{snap: &adlibrary.AdsSnapshot{IsRunningAds: false, TotalAds: 0}}
	seo := &fakeSeo{snap: &seoscan.SeoPpcSnapshot{SerpPosition: ptrInt(15)}}

	e := New(st, pl, ads, seo, recommend.DefaultThresholds(), fastLimits())
	profile, err := e.Enrich(context.Background(), Request{
		Name:     "Acme Plumbing",
		Domain:   "acmeplumbing.com",
		Location: "Springfield, IL",
	})
	require.NoError(t, err)

	assert.Equal(t, "acmeplumbing.com", profile.Domain)
	assert.Equal(t, 75, profile.Scores.Presence)
	assert.Equal(t, 100, profile.Scores.SEO)
	assert.Equal(t, 0, profile.Scores.AdsActivity)
	assert.Equal(t, 54, profile.Scores.Engagement)
	assert.Equal(t, 63, profile.Scores.Lead)

	// All three sources reported, so the PPC gap surfaces at priority 1.
	var sawPPC bool
	for _, r := range profile.Recommendations {
		if r.Priority == 1 && r.Text == "PPC Management: missing paid traffic opportunity" {
			sawPPC = true
		}
	}
	assert.True(t, sawPPC)

	// The subject is excluded from its own competitor list.
	require.Len(t, profile.Competitors, 1)
	assert.Equal(t, "rivalplumbing.com", profile.Competitors[0].Domain)

	stored, err := st.GetProfileByDomain(context.Background(), "acmeplumbing.com")
	require.NoError(t, err)
	assert.Equal(t, profile.Scores, stored.Scores)
	assert.Equal(t, int64(1), stored.Sequence)
}

func TestEnrich_ProviderFailureDowngradesSource(t *testing.T) {
	st := newTestStore(t)
	pl := &fakePlaces{fn: func(int) (*places.NearbySearchResponse, error) { return subjectResponse(120), nil }}
	ads := &fakeAds{err: eris.New("adlibrary: unexpected status 503")}
	seo := &fakeSeo{snap: &seoscan.SeoPpcSnapshot{}}

	e := New(st, pl, ads, seo, recommend.DefaultThresholds(), fastLimits())
	profile, err := e.Enrich(context.Background(), Request{
		Name:   "Acme Plumbing",
		Domain: "acmeplumbing.com",
	})
	require.NoError(t, err)

	assert.False(t, profile.Signals.Sources.Ads)
	for _, r := range profile.Recommendations {
		assert.NotContains(t, r.Text, "PPC Management", "ads-gated rule must stay suppressed")
	}

	// The run still persisted with the sources it had.
	_, err = st.GetProfileByDomain(context.Background(), "acmeplumbing.com")
	require.NoError(t, err)
}

func TestEnrich_UnidentifiableBusiness(t *testing.T) {
	st := newTestStore(t)
	pl := &fakePlaces{fn: func(int) (*places.NearbySearchResponse, error) {
		return nil, eris.New("places: unexpected status 500")
	}}
	e := New(st, pl, &fakeAds{snap: &adlibrary.AdsSnapshot{}}, &fakeSeo{snap: &seoscan.SeoPpcSnapshot{}},
		recommend.DefaultThresholds(), fastLimits())

	_, err := e.Enrich(context.Background(), Request{Name: "Acme Plumbing", Domain: "acmeplumbing.com"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, signal.ErrMalformedSource))
}

func TestEnrich_NoDomainSkipsSeoScan(t *testing.T) {
	st := newTestStore(t)
	pl := &fakePlaces{fn: func(int) (*places.NearbySearchResponse, error) {
		return &places.NearbySearchResponse{Businesses: []places.RawBusiness{
			{Name: "Cash Only Diner", Phone: "555-0101"},
		}}, nil
	}}
	seo := &fakeSeo{snap: &seoscan.SeoPpcSnapshot{}}

	e := New(st, pl, &fakeAds{snap: &adlibrary.AdsSnapshot{}}, seo, recommend.DefaultThresholds(), fastLimits())
	profile, err := e.Enrich(context.Background(), Request{Name: "Cash Only Diner"})
	require.NoError(t, err)

	assert.Equal(t, 0, seo.calls)
	assert.False(t, profile.Signals.Sources.SeoPpc)
	// Name-keyed profiles still land on a stable row.
	assert.Equal(t, "Cash Only Diner", profile.Domain)
}

func TestEnrich_StaleRunDropped(t *testing.T) {
	st := newTestStore(t)
	pl := &fakePlaces{
		fn: func(call int) (*places.NearbySearchResponse, error) {
			if call == 1 {
				return subjectResponse(10), nil
			}
			return subjectResponse(500), nil
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := New(st, pl, &fakeAds{snap: &adlibrary.AdsSnapshot{}}, &fakeSeo{snap: &seoscan.SeoPpcSnapshot{}},
		recommend.DefaultThresholds(), fastLimits())

	req := Request{Name: "Acme Plumbing", Domain: "acmeplumbing.com"}

	var wg sync.WaitGroup
	var firstProfile *model.BusinessProfile
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstProfile, firstErr = e.Enrich(context.Background(), req)
	}()

	// Wait until the first run is stuck inside the provider call, then let a
	// second run lap it.
	<-pl.started
	second, err := e.Enrich(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Sequence)

	close(pl.release)
	wg.Wait()

	// The lapped run finishes quietly and its result is discarded.
	require.NoError(t, firstErr)
	require.NotNil(t, firstProfile)
	assert.Equal(t, int64(1), firstProfile.Sequence)

	stored, err := st.GetProfileByDomain(context.Background(), "acmeplumbing.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Sequence)
	assert.Equal(t, 500, stored.Signals.ReviewCount)
}
