package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscope/internal/model"
)

// Lead-score weights. Fixed constants summing to 1.0; changing them requires
// recomputing every stored lead score so mixed-weight records never persist.
const (
	WeightPresence    = 0.30
	WeightSEO         = 0.35
	WeightAdsActivity = 0.25
	WeightEngagement  = 0.10
)

// ComputeScores derives the four sub-scores and the composite lead score
// from a single signal snapshot.
func ComputeScores(s *model.BusinessSignals) model.ScoreBreakdown {
	b := model.ScoreBreakdown{
		Presence:    Presence(s),
		SEO:         SEO(s),
		AdsActivity: AdsActivity(s),
		Engagement:  Engagement(s),
	}
	b.Lead = LeadScore(b)
	return b
}

// LeadScore combines the four sub-scores with the fixed weights.
func LeadScore(b model.ScoreBreakdown) int {
	v := WeightPresence*float64(b.Presence) +
		WeightSEO*float64(b.SEO) +
		WeightAdsActivity*float64(b.AdsActivity) +
		WeightEngagement*float64(b.Engagement)
	return roundClamp(v)
}

// LeadWeightSum returns the sum of the four lead-score weights.
func LeadWeightSum() float64 {
	return WeightPresence + WeightSEO + WeightAdsActivity + WeightEngagement
}

// ValidateWeights checks the weight invariants at wiring time: the lead
// weights must sum to 1.0 and the opportunity caps to exactly 100.
func ValidateWeights() error {
	if math.Abs(LeadWeightSum()-1.0) > 1e-9 {
		return eris.Errorf("scoring: lead weights sum to %.4f, want 1.0", LeadWeightSum())
	}
	if sum := OpportunityCapSum(); sum != 100 {
		return eris.Errorf("scoring: opportunity caps sum to %d, want 100", sum)
	}
	return nil
}
