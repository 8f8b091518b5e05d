package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadscope/internal/model"
)

func ptrFloat(f float64) *float64 { return &f }
func ptrInt(i int) *int           { return &i }

func fullNAPSignals(rating float64, reviews int) *model.BusinessSignals {
	return &model.BusinessSignals{
		Rating:      ptrFloat(rating),
		ReviewCount: reviews,
		HasWebsite:  true,
		HasPhone:    true,
		HasAddress:  true,
	}
}

func TestPresence(t *testing.T) {
	tests := []struct {
		name    string
		signals *model.BusinessSignals
		want    int
	}{
		{"strong profile", fullNAPSignals(4.8, 120), 75},
		{"empty business", &model.BusinessSignals{Rating: ptrFloat(1.0)}, 0},
		{"unknown rating uses midpoint", &model.BusinessSignals{ReviewCount: 0}, 20},
		{"rating clamped below 1", &model.BusinessSignals{Rating: ptrFloat(0.5)}, 0},
		{"nap requires all three", &model.BusinessSignals{
			Rating: ptrFloat(1.0), HasWebsite: true, HasPhone: true,
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Presence(tt.signals))
		})
	}
}

func TestPresence_UnknownRatingMatchesExplicitMidpoint(t *testing.T) {
	// (3.0-1)/4*100 == 50, the documented midpoint substitution.
	unknown := &model.BusinessSignals{ReviewCount: 40, HasWebsite: true, HasPhone: true, HasAddress: true}
	explicit := fullNAPSignals(3.0, 40)

	assert.Equal(t, Presence(explicit), Presence(unknown))
	assert.Equal(t, Engagement(explicit), Engagement(unknown))
}

func TestSEO_StepFunction(t *testing.T) {
	tests := []struct {
		name    string
		signals *model.BusinessSignals
		want    int
	}{
		{"all terms", fullNAPSignals(4.8, 120), 100},
		{"website only", &model.BusinessSignals{HasWebsite: true}, 60},
		{"reviews at boundary not awarded", &model.BusinessSignals{HasWebsite: true, ReviewCount: 10}, 60},
		{"reviews above boundary", &model.BusinessSignals{HasWebsite: true, ReviewCount: 11}, 80},
		{"rating at boundary not awarded", &model.BusinessSignals{Rating: ptrFloat(4.0)}, 0},
		{"unknown rating term skipped", &model.BusinessSignals{HasWebsite: true, ReviewCount: 50}, 80},
		{"nothing", &model.BusinessSignals{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SEO(tt.signals))
		})
	}
}

func TestAdsActivity(t *testing.T) {
	tests := []struct {
		adCount int
		want    int
	}{
		{0, 0},
		{1, 10},
		{7, 70},
		{10, 100},
		{50, 100},
	}

	for _, tt := range tests {
		got := AdsActivity(&model.BusinessSignals{AdCount: tt.adCount})
		assert.Equal(t, tt.want, got, "adCount=%d", tt.adCount)
	}
}

func TestEngagement(t *testing.T) {
	assert.Equal(t, 54, Engagement(fullNAPSignals(4.8, 120)))
	// Review term caps at 100 from 1000 reviews on.
	assert.Equal(t, Engagement(fullNAPSignals(4.8, 1000)), Engagement(fullNAPSignals(4.8, 5000)))
}

func TestSubScores_BoundsAndDeterminism(t *testing.T) {
	inputs := []*model.BusinessSignals{
		{},
		fullNAPSignals(5.0, 100000),
		fullNAPSignals(0, 0),
		{Rating: ptrFloat(2.5), ReviewCount: 3, AdCount: 4},
		{SerpPosition: ptrInt(3), PPCRunningAds: true, PPCAdCount: 2},
	}

	for _, s := range inputs {
		first := ComputeScores(s)
		second := ComputeScores(s)
		assert.Equal(t, first, second, "repeated invocation must be identical")

		for _, v := range []int{first.Presence, first.SEO, first.AdsActivity, first.Engagement, first.Lead} {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 100)
		}
	}
}

func TestSubScores_ReviewCountMonotonicity(t *testing.T) {
	prevPresence, prevEngagement := -1, -1
	for _, reviews := range []int{0, 1, 5, 10, 50, 120, 500, 2000, 100000} {
		s := fullNAPSignals(4.2, reviews)
		p, e := Presence(s), Engagement(s)
		assert.GreaterOrEqual(t, p, prevPresence, "presence must not decrease at %d reviews", reviews)
		assert.GreaterOrEqual(t, e, prevEngagement, "engagement must not decrease at %d reviews", reviews)
		prevPresence, prevEngagement = p, e
	}
}
