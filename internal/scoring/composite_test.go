package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscope/internal/model"
)

func TestComputeScores_EndToEnd(t *testing.T) {
	s := &model.BusinessSignals{
		Rating:      ptrFloat(4.8),
		ReviewCount: 120,
		HasWebsite:  true,
		HasPhone:    true,
		HasAddress:  true,
		AdCount:     0,
	}

	b := ComputeScores(s)
	assert.Equal(t, 75, b.Presence)
	assert.Equal(t, 100, b.SEO)
	assert.Equal(t, 0, b.AdsActivity)
	assert.Equal(t, 54, b.Engagement)
	assert.Equal(t, 63, b.Lead)
}

func TestLeadScore_DerivedFromSubScores(t *testing.T) {
	tests := []struct {
		name string
		b    model.ScoreBreakdown
		want int
	}{
		{"all zero", model.ScoreBreakdown{}, 0},
		{"all hundred", model.ScoreBreakdown{Presence: 100, SEO: 100, AdsActivity: 100, Engagement: 100}, 100},
		{"presence only", model.ScoreBreakdown{Presence: 100}, 30},
		{"seo only", model.ScoreBreakdown{SEO: 100}, 35},
		{"ads only", model.ScoreBreakdown{AdsActivity: 100}, 25},
		{"engagement only", model.ScoreBreakdown{Engagement: 100}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LeadScore(tt.b))
		})
	}
}

func TestValidateWeights(t *testing.T) {
	require.NoError(t, ValidateWeights())
	assert.InDelta(t, 1.0, LeadWeightSum(), 1e-9)
	assert.Equal(t, 100, OpportunityCapSum())
}
