// Package signal converts heterogeneous raw provider payloads into the
// canonical BusinessSignals record. This is the only place loosely-typed
// provider data is touched; everything downstream works on typed signals
// with explicit unknown markers.
package signal

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscope/internal/competitor"
	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/pkg/adlibrary"
	"github.com/sells-group/leadscope/pkg/places"
	"github.com/sells-group/leadscope/pkg/seoscan"
)

// ErrMalformedSource marks a provider payload whose business identity could
// not be resolved. Scoring aborts for that business; no partial profile is
// persisted.
var ErrMalformedSource = eris.New("signal: malformed source")

// Identity is the resolved business identity extracted alongside the signals.
type Identity struct {
	Name     string
	Domain   string
	Location string
}

// RawInputs bundles the provider payloads for one scoring run. Any payload
// may be nil: sources arrive independently and a missing one degrades the
// affected fields to unknown rather than blocking the run.
type RawInputs struct {
	Place    *places.RawBusiness
	Ads      *adlibrary.AdsSnapshot
	SeoPpc   *seoscan.SeoPpcSnapshot
	Location string
}

// Normalize maps raw provider payloads onto BusinessSignals. Every numeric
// field is clamped to its documented range; absent fields become unknown
// markers, never zero. The place payload carries identity and is required:
// a record with no resolvable name fails with ErrMalformedSource.
func Normalize(raw RawInputs) (Identity, *model.BusinessSignals, error) {
	if raw.Place == nil {
		return Identity{}, nil, eris.Wrap(ErrMalformedSource, "missing place record")
	}

	id := Identity{
		Name:     strings.TrimSpace(raw.Place.Name),
		Domain:   competitor.NormalizeDomain(raw.Place.Website),
		Location: strings.TrimSpace(raw.Location),
	}
	if id.Name == "" {
		return Identity{}, nil, eris.Wrap(ErrMalformedSource, "business name unresolved")
	}

	s := &model.BusinessSignals{
		Rating:      clampRating(raw.Place.Rating),
		ReviewCount: nonNegative(intValue(raw.Place.ReviewCount)),
		HasWebsite:  strings.TrimSpace(raw.Place.Website) != "",
		HasPhone:    strings.TrimSpace(raw.Place.Phone) != "",
		HasAddress:  strings.TrimSpace(raw.Place.Address) != "",
	}
	s.Sources.Places = true

	if raw.Ads != nil {
		s.AdCount = nonNegative(raw.Ads.TotalAds)
		s.Sources.Ads = true
	}

	if raw.SeoPpc != nil {
		applySeoPpc(s, raw.SeoPpc)
		s.Sources.SeoPpc = true
	}

	return id, s, nil
}

func applySeoPpc(s *model.BusinessSignals, snap *seoscan.SeoPpcSnapshot) {
	if snap.SerpPosition != nil && *snap.SerpPosition >= 1 {
		pos := *snap.SerpPosition
		s.SerpPosition = &pos
	}

	for _, flag := range model.TrackedSchemas {
		if flagPresent(snap.Schemas, string(flag)) {
			s.SchemaFlags = append(s.SchemaFlags, flag)
		}
	}
	for _, flag := range model.TrackedAnalytics {
		if flagPresent(snap.Analytics, string(flag)) {
			s.AnalyticsFlags = append(s.AnalyticsFlags, flag)
		}
	}

	s.Speed.Desktop = clampSpeed(snap.SpeedScores.Desktop)
	s.Speed.Mobile = clampSpeed(snap.SpeedScores.Mobile)

	s.BacklinkCount = nonNegative64(snap.BacklinkCount)
	s.DomainAuthority = nonNegative64(snap.DomainAuthority)
	s.MonthlyTraffic = nonNegative64(snap.MonthlyTraffic)

	s.PPCRunningAds = snap.PPCStatus.RunningAds
	s.PPCAdCount = nonNegative(snap.PPCStatus.AdCount)
}

// flagPresent interprets the provider's string-valued booleans. Keys are
// matched case-insensitively; anything that is not an affirmative value
// (including absence) counts as missing.
func flagPresent(m map[string]string, key string) bool {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return parseFlag(v)
		}
	}
	return false
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "present", "true", "yes", "1":
		return true
	default:
		return false
	}
}

func clampRating(r *float64) *float64 {
	if r == nil {
		return nil
	}
	v := *r
	if v < 0 {
		v = 0
	}
	if v > 5 {
		v = 5
	}
	return &v
}

func clampSpeed(s *int) *int {
	if s == nil {
		return nil
	}
	v := *s
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegative64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	if v < 0 {
		v = 0
	}
	return &v
}
