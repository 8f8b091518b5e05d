// Package recommend derives ranked improvement recommendations from
// threshold rules over signals and sub-scores. Rules are evaluated
// independently; a rule whose predicate touches an unknown field is skipped
// rather than guessed (fails closed).
package recommend

import (
	"github.com/sells-group/leadscope/internal/model"
)

// Priority levels for recommendations.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// Rule is one entry in the recommendation table. Match returns fire=true
// when the rule applies and ok=false when its inputs are unknown or the
// source that produces them has not arrived.
type Rule struct {
	Text     string
	Priority int
	Match    func(s *model.BusinessSignals, b model.ScoreBreakdown, cfg Thresholds) (fire, ok bool)
}

// Rules returns the built-in rule table in evaluation order. Output ordering
// among equal priorities follows this table order.
func Rules() []Rule {
	return []Rule{
		{
			Text:     "Launch a business website",
			Priority: PriorityHigh,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, _ Thresholds) (bool, bool) {
				return !s.HasWebsite, s.Sources.Places
			},
		},
		{
			Text:     "PPC Management: missing paid traffic opportunity",
			Priority: PriorityHigh,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, _ Thresholds) (bool, bool) {
				// Only surfaced when the ads and SEO/PPC sources actually reported.
				return !s.PPCRunningAds && s.AdCount == 0, s.Sources.Ads && s.Sources.SeoPpc
			},
		},
		{
			Text:     "Reputation Management recommended",
			Priority: PriorityHigh,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, cfg Thresholds) (bool, bool) {
				if !s.Sources.Places {
					return false, false
				}
				// Short-circuit OR: the review term never touches the rating,
				// so an unknown rating only suppresses the second term.
				if s.ReviewCount < cfg.ReviewFloor {
					return true, true
				}
				if s.Rating == nil {
					return false, false
				}
				return *s.Rating < cfg.RatingFloor, true
			},
		},
		{
			Text:     "Improve Google Business Profile completeness",
			Priority: PriorityMedium,
			Match: func(s *model.BusinessSignals, b model.ScoreBreakdown, cfg Thresholds) (bool, bool) {
				return b.Presence < cfg.PresenceThreshold, s.Sources.Places
			},
		},
		{
			Text:     "Optimize website for local SEO",
			Priority: PriorityMedium,
			Match: func(s *model.BusinessSignals, b model.ScoreBreakdown, cfg Thresholds) (bool, bool) {
				return b.SEO < cfg.SEOThreshold, s.Sources.Places
			},
		},
		{
			Text:     "Add structured data markup to key pages",
			Priority: PriorityMedium,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, cfg Thresholds) (bool, bool) {
				missing := 0
				for _, f := range model.TrackedSchemas {
					if !s.HasSchema(f) {
						missing++
					}
				}
				return missing >= cfg.SchemaMissingMin, s.Sources.SeoPpc
			},
		},
		{
			Text:     "Improve site performance: page speed below target",
			Priority: PriorityMedium,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, cfg Thresholds) (bool, bool) {
				// Unknown measurements are skipped, not assumed slow.
				if !s.Sources.SeoPpc || (s.Speed.Desktop == nil && s.Speed.Mobile == nil) {
					return false, false
				}
				if s.Speed.Desktop != nil && *s.Speed.Desktop < cfg.SpeedFloor {
					return true, true
				}
				if s.Speed.Mobile != nil && *s.Speed.Mobile < cfg.SpeedFloor {
					return true, true
				}
				return false, true
			},
		},
		{
			Text:     "Target local search rankings: business not on page one",
			Priority: PriorityMedium,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, cfg Thresholds) (bool, bool) {
				if !s.Sources.SeoPpc || s.SerpPosition == nil {
					return false, false
				}
				return *s.SerpPosition > cfg.SerpPageOne, true
			},
		},
		{
			Text:     "Install web analytics to measure traffic and conversions",
			Priority: PriorityLow,
			Match: func(s *model.BusinessSignals, _ model.ScoreBreakdown, _ Thresholds) (bool, bool) {
				return len(s.AnalyticsFlags) == 0, s.Sources.SeoPpc
			},
		},
	}
}

// Generate evaluates the rule table and returns all matching
// recommendations, sorted by priority then table order, with exact-text
// duplicates removed.
func Generate(s *model.BusinessSignals, b model.ScoreBreakdown, cfg Thresholds) []model.Recommendation {
	return generate(Rules(), s, b, cfg)
}

func generate(rules []Rule, s *model.BusinessSignals, b model.ScoreBreakdown, cfg Thresholds) []model.Recommendation {
	var out []model.Recommendation
	seen := make(map[string]bool)

	// The table is already in priority-tier order, so a stable pass per
	// priority preserves table order within a tier.
	for _, priority := range []int{PriorityHigh, PriorityMedium, PriorityLow} {
		for _, r := range rules {
			if r.Priority != priority || seen[r.Text] {
				continue
			}
			fire, ok := r.Match(s, b, cfg)
			if !ok || !fire {
				continue
			}
			seen[r.Text] = true
			out = append(out, model.Recommendation{Text: r.Text, Priority: r.Priority})
		}
	}
	return out
}
