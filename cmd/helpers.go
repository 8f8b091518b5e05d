package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscope/internal/enrich"
	"github.com/sells-group/leadscope/internal/recommend"
	"github.com/sells-group/leadscope/internal/store"
	"github.com/sells-group/leadscope/pkg/adlibrary"
	"github.com/sells-group/leadscope/pkg/places"
	"github.com/sells-group/leadscope/pkg/seoscan"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadThresholds returns the rule cutoffs, applying the override file when
// one is configured.
func loadThresholds() (recommend.Thresholds, error) {
	if cfg.Recommend.ThresholdsFile == "" {
		return recommend.DefaultThresholds(), nil
	}
	return recommend.LoadThresholds(cfg.Recommend.ThresholdsFile)
}

func initEnricher(st store.Store) (*enrich.Enricher, error) {
	thresholds, err := loadThresholds()
	if err != nil {
		return nil, err
	}

	placesClient := newPlacesClient()
	adsClient := newAdsClient()
	seoClient := newSeoClient()

	limits := enrich.Limits{
		PlacesRPS: cfg.Enrich.PlacesRPS,
		AdsRPS:    cfg.Enrich.AdsRPS,
		SeoRPS:    cfg.Enrich.SeoRPS,
	}

	return enrich.New(st, placesClient, adsClient, seoClient, thresholds, limits), nil
}

func newPlacesClient() places.Client {
	var opts []places.Option
	if cfg.Places.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	return places.NewClient(cfg.Places.Key, opts...)
}

func newAdsClient() adlibrary.Client {
	var opts []adlibrary.Option
	if cfg.AdLibrary.BaseURL != "" {
		opts = append(opts, adlibrary.WithBaseURL(cfg.AdLibrary.BaseURL))
	}
	return adlibrary.NewClient(cfg.AdLibrary.Key, opts...)
}

func newSeoClient() seoscan.Client {
	var opts []seoscan.Option
	if cfg.SeoScan.BaseURL != "" {
		opts = append(opts, seoscan.WithBaseURL(cfg.SeoScan.BaseURL))
	}
	return seoscan.NewClient(cfg.SeoScan.Key, opts...)
}
