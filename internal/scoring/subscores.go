// Package scoring implements the deterministic sub-score, lead-score and
// opportunity-score calculators. Every function here is pure: identical
// signals produce bit-identical output.
package scoring

import (
	"math"

	"github.com/sells-group/leadscope/internal/model"
)

// neutralRating is the midpoint substituted when a rating is unknown.
// Fixed fallback policy: unknown rating never contributes zero.
const neutralRating = 50.0

// Presence scores how complete and visible the business listing is:
// 40% rating, 40% review volume, 20% NAP (name/address/phone) completeness.
func Presence(s *model.BusinessSignals) int {
	rating := ratingComponent(s.Rating)
	reviews := clamp(math.Log10(1+float64(s.ReviewCount))*20, 0, 100)

	nap := 0.0
	if s.HasWebsite && s.HasPhone && s.HasAddress {
		nap = 100
	}

	return roundClamp(0.4*rating + 0.4*reviews + 0.2*nap)
}

// SEO is a coarse step-function proxy used in the absence of a full crawl:
// each term is awarded in full or not at all.
func SEO(s *model.BusinessSignals) int {
	score := 0.0
	if s.HasWebsite {
		score += 60
	}
	if s.ReviewCount > 10 {
		score += 20
	}
	if s.Rating != nil && *s.Rating > 4.0 {
		score += 20
	}
	return roundClamp(score)
}

// AdsActivity is linear in the observed ad count with a hard cap. Zero ads
// scores zero, signalling an unexploited paid channel.
func AdsActivity(s *model.BusinessSignals) int {
	return roundClamp(math.Min(100, 10*float64(s.AdCount)))
}

// Engagement blends rating with a capped review-volume term:
// 50% rating, 50% min(100, reviewCount/10).
func Engagement(s *model.BusinessSignals) int {
	rating := ratingComponent(s.Rating)
	reviews := math.Min(100, float64(s.ReviewCount)/10)
	return roundClamp(0.5*rating + 0.5*reviews)
}

// ratingComponent maps a 1-5 star rating onto [0,100]. Unknown ratings take
// the neutral midpoint rather than zero.
func ratingComponent(rating *float64) float64 {
	if rating == nil {
		return neutralRating
	}
	return clamp((*rating-1)/4*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// roundClamp rounds to the nearest integer and clamps to [0,100] as a final
// guard against compounding rounding drift.
func roundClamp(v float64) int {
	return int(clamp(math.Round(v), 0, 100))
}
