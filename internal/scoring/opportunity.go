package scoring

import (
	"math"

	"github.com/sells-group/leadscope/internal/model"
)

// Per-factor opportunity caps. The five caps sum to exactly 100 so the
// factor credits can simply be added; ValidateWeights enforces this.
const (
	CapSerpPosition = 30
	CapSchemas      = 20
	CapAnalytics    = 15
	CapSpeedScores  = 20
	CapPPCStatus    = 15
)

// serpWindow is the observed SERP depth: ranking at or beyond this position
// earns the same full opportunity credit as not ranking at all.
const serpWindow = 20

// OpportunityCapSum returns the sum of the five factor caps.
func OpportunityCapSum() int {
	return CapSerpPosition + CapSchemas + CapAnalytics + CapSpeedScores + CapPPCStatus
}

// ComputeOpportunity measures unexploited improvement potential. Each factor
// is capped to its share of 100 and the capped credits are summed. The
// breakdown is always returned alongside the total so callers can explain
// why a score is high, not only that it is.
func ComputeOpportunity(s *model.BusinessSignals) model.OpportunityBreakdown {
	b := model.OpportunityBreakdown{
		SerpPosition: serpPositionFactor(s.SerpPosition),
		Schemas:      schemaFactor(s),
		Analytics:    analyticsFactor(s),
		SpeedScores:  speedFactor(s.Speed),
		PPCStatus:    ppcFactor(s.PPCRunningAds, s.PPCAdCount),
	}
	b.Total = b.SerpPosition + b.Schemas + b.Analytics + b.SpeedScores + b.PPCStatus
	return b
}

// serpPositionFactor awards full credit when the business is not ranked in
// the observed window ("not found" is the strongest red flag), tapering
// linearly to zero credit at position 1.
func serpPositionFactor(pos *int) int {
	if pos == nil {
		return CapSerpPosition
	}
	depth := float64(*pos - 1)
	if depth < 0 {
		depth = 0
	}
	return int(math.Round(CapSerpPosition * math.Min(depth, serpWindow) / serpWindow))
}

// schemaFactor is proportional to how many tracked schema types are missing.
func schemaFactor(s *model.BusinessSignals) int {
	missing := 0
	for _, f := range model.TrackedSchemas {
		if !s.HasSchema(f) {
			missing++
		}
	}
	return int(math.Round(CapSchemas * float64(missing) / float64(len(model.TrackedSchemas))))
}

// analyticsFactor: full credit with no analytics tags, half (rounded) with
// one, zero with both.
func analyticsFactor(s *model.BusinessSignals) int {
	present := 0
	for _, f := range model.TrackedAnalytics {
		if s.HasAnalytics(f) {
			present++
		}
	}
	switch present {
	case 0:
		return CapAnalytics
	case 1:
		return int(math.Round(CapAnalytics / 2.0))
	default:
		return 0
	}
}

// speedFactor is proportional to how far desktop and mobile scores fall
// below 90. An unknown measurement is treated as the worst case, not
// neutral: missing speed data correlates with unoptimized sites. This is a
// deliberately different fallback policy than the rating midpoint.
func speedFactor(sp model.SpeedScores) int {
	mean := (speedDeficit(sp.Desktop) + speedDeficit(sp.Mobile)) / 2
	return int(math.Round(CapSpeedScores * mean))
}

// speedDeficit returns 0.0 (fast) to 1.0 (slow or unknown).
func speedDeficit(score *int) float64 {
	if score == nil {
		return 1.0
	}
	return clamp(float64(90-*score), 0, 90) / 90
}

// ppcFactor awards full credit when no ads are running; an active campaign
// loses credit linearly with ad count, reaching zero at ten or more ads.
func ppcFactor(running bool, adCount int) int {
	if !running {
		return CapPPCStatus
	}
	remaining := 1 - math.Min(float64(adCount), 10)/10
	return int(math.Round(CapPPCStatus * remaining))
}
