// Package enrich orchestrates a full provider-driven scoring run: fan out to
// the data providers, normalize, score, recommend, resolve competitors and
// persist the resulting profile.
package enrich

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscope/internal/competitor"
	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/recommend"
	"github.com/sells-group/leadscope/internal/scoring"
	"github.com/sells-group/leadscope/internal/signal"
	"github.com/sells-group/leadscope/internal/store"
	"github.com/sells-group/leadscope/pkg/adlibrary"
	"github.com/sells-group/leadscope/pkg/places"
	"github.com/sells-group/leadscope/pkg/seoscan"
)

// ErrStaleComputation marks a finished run that was overtaken by a newer one
// for the same domain. It never leaves this package; stale results are
// dropped, not merged and not reported.
var ErrStaleComputation = eris.New("enrich: stale computation")

// Request identifies the business to enrich. Name is required for the
// local-pack query; Domain unlocks the SEO/PPC scan.
type Request struct {
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Location string `json:"location,omitempty"`
}

// Limits configures per-provider request rates.
type Limits struct {
	PlacesRPS float64 `yaml:"places_rps" mapstructure:"places_rps"`
	AdsRPS    float64 `yaml:"ads_rps" mapstructure:"ads_rps"`
	SeoRPS    float64 `yaml:"seo_rps" mapstructure:"seo_rps"`
}

// DefaultLimits returns conservative provider rates.
func DefaultLimits() Limits {
	return Limits{PlacesRPS: 5, AdsRPS: 2, SeoRPS: 1}
}

// Enricher runs provider fan-out and scoring for one business at a time per
// domain. Each run gets a monotonic per-domain sequence number; only the
// newest run's result is persisted.
type Enricher struct {
	store      store.Store
	places     places.Client
	ads        adlibrary.Client
	seo        seoscan.Client
	thresholds recommend.Thresholds

	placesLimiter *rate.Limiter
	adsLimiter    *rate.Limiter
	seoLimiter    *rate.Limiter

	mu   sync.Mutex
	seqs map[string]int64
}

// New creates an Enricher.
func New(st store.Store, pl places.Client, ads adlibrary.Client, seo seoscan.Client, thresholds recommend.Thresholds, limits Limits) *Enricher {
	if limits.PlacesRPS <= 0 {
		limits.PlacesRPS = DefaultLimits().PlacesRPS
	}
	if limits.AdsRPS <= 0 {
		limits.AdsRPS = DefaultLimits().AdsRPS
	}
	if limits.SeoRPS <= 0 {
		limits.SeoRPS = DefaultLimits().SeoRPS
	}
	return &Enricher{
		store:         st,
		places:        pl,
		ads:           ads,
		seo:           seo,
		thresholds:    thresholds,
		placesLimiter: rate.NewLimiter(rate.Limit(limits.PlacesRPS), 1),
		adsLimiter:    rate.NewLimiter(rate.Limit(limits.AdsRPS), 1),
		seoLimiter:    rate.NewLimiter(rate.Limit(limits.SeoRPS), 1),
		seqs:          make(map[string]int64),
	}
}

// Enrich runs the full pipeline for one business and persists the profile.
// A provider failure downgrades that source to unavailable rather than
// failing the run; only an unidentifiable business is an error.
func (e *Enricher) Enrich(ctx context.Context, req Request) (*model.BusinessProfile, error) {
	key := e.sequenceKey(req)
	seq := e.nextSequence(key)

	logger := zap.L().With(zap.String("business", key), zap.Int64("sequence", seq))

	raw, nearby := e.collect(ctx, req, logger)

	identity, signals, err := signal.Normalize(raw)
	if err != nil {
		return nil, err
	}

	scores := scoring.ComputeScores(signals)
	opportunity := scoring.ComputeOpportunity(signals)
	recs := recommend.Generate(signals, scores, e.thresholds)

	subject := competitor.Subject{
		Domain:      identity.Domain,
		Name:        identity.Name,
		Rating:      signals.Rating,
		ReviewCount: signals.ReviewCount,
	}
	competitors := competitor.Resolve(subject, nearby)

	profile := &model.BusinessProfile{
		Domain:          identity.Domain,
		Name:            identity.Name,
		Location:        identity.Location,
		Signals:         *signals,
		Scores:          scores,
		Opportunity:     opportunity,
		Recommendations: recs,
		Competitors:     competitors,
		Sequence:        seq,
	}
	if profile.Domain == "" {
		// Businesses without a website are keyed by normalized name so
		// re-scores still land on the same row.
		profile.Domain = key
	}

	if err := e.persistIfCurrent(ctx, key, profile); err != nil {
		if eris.Is(err, ErrStaleComputation) {
			logger.Debug("dropping stale enrichment result")
			return profile, nil
		}
		return nil, err
	}

	logger.Info("profile enriched",
		zap.Int("lead_score", scores.Lead),
		zap.Int("opportunity", opportunity.Total),
		zap.Int("competitors", len(competitors)))
	return profile, nil
}

// collect fans out to the three providers. Failures are logged and leave the
// corresponding payload nil; the normalizer records which sources made it.
func (e *Enricher) collect(ctx context.Context, req Request, logger *zap.Logger) (signal.RawInputs, []places.RawBusiness) {
	raw := signal.RawInputs{Location: req.Location}
	var nearby []places.RawBusiness

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.placesLimiter.Wait(gctx); err != nil {
			return nil //nolint:nilerr
		}
		resp, err := e.places.NearbySearch(gctx, places.NearbySearchRequest{
			Query:    req.Name,
			Location: req.Location,
		})
		if err != nil {
			logger.Warn("places lookup failed", zap.Error(err))
			return nil
		}
		raw.Place = pickPlace(resp.Businesses, req)
		nearby = resp.Businesses
		return nil
	})

	g.Go(func() error {
		if err := e.adsLimiter.Wait(gctx); err != nil {
			return nil //nolint:nilerr
		}
		businessID := req.Domain
		if businessID == "" {
			businessID = req.Name
		}
		snap, err := e.ads.BusinessAds(gctx, businessID, req.Location)
		if err != nil {
			logger.Warn("ad activity lookup failed", zap.Error(err))
			return nil
		}
		raw.Ads = snap
		return nil
	})

	g.Go(func() error {
		if req.Domain == "" {
			// The SEO/PPC scan is domain-keyed; without one there is
			// nothing to scan.
			return nil
		}
		if err := e.seoLimiter.Wait(gctx); err != nil {
			return nil //nolint:nilerr
		}
		snap, err := e.seo.BusinessSeoPpc(gctx, req.Domain, req.Location)
		if err != nil {
			logger.Warn("seo/ppc scan failed", zap.Error(err))
			return nil
		}
		raw.SeoPpc = snap
		return nil
	})

	g.Wait() //nolint:errcheck
	return raw, nearby
}

// pickPlace selects the local-pack record for the subject business: the
// first domain match when the request carries a domain, otherwise the
// provider's top result.
func pickPlace(results []places.RawBusiness, req Request) *places.RawBusiness {
	if len(results) == 0 {
		return nil
	}
	if req.Domain != "" {
		want := competitor.NormalizeDomain(req.Domain)
		for i := range results {
			if competitor.NormalizeDomain(results[i].Website) == want {
				return &results[i]
			}
		}
	}
	return &results[0]
}

func (e *Enricher) sequenceKey(req Request) string {
	if d := competitor.NormalizeDomain(req.Domain); d != "" {
		return d
	}
	return req.Name
}

func (e *Enricher) nextSequence(key string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seqs[key]++
	return e.seqs[key]
}

func (e *Enricher) persistIfCurrent(ctx context.Context, key string, profile *model.BusinessProfile) error {
	e.mu.Lock()
	latest := e.seqs[key]
	e.mu.Unlock()
	if profile.Sequence < latest {
		return eris.Wrapf(ErrStaleComputation, "sequence %d < %d", profile.Sequence, latest)
	}
	return e.store.SaveProfile(ctx, profile)
}
