// Package model defines the domain types shared across the scoring engine.
package model

import "time"

// SchemaFlag identifies a structured-data markup type tracked on a business website.
type SchemaFlag string

const (
	SchemaLocalBusiness SchemaFlag = "localBusiness"
	SchemaFAQ           SchemaFlag = "faq"
	SchemaBreadcrumbs   SchemaFlag = "breadcrumbs"
	SchemaOrganization  SchemaFlag = "organization"
	SchemaReviews       SchemaFlag = "reviews"
)

// TrackedSchemas is the full set of schema flags the scorer knows about.
var TrackedSchemas = []SchemaFlag{
	SchemaLocalBusiness,
	SchemaFAQ,
	SchemaBreadcrumbs,
	SchemaOrganization,
	SchemaReviews,
}

// AnalyticsFlag identifies an analytics tag detected on a business website.
type AnalyticsFlag string

const (
	AnalyticsGoogle        AnalyticsFlag = "googleAnalytics"
	AnalyticsFacebookPixel AnalyticsFlag = "facebookPixel"
)

// TrackedAnalytics is the full set of analytics flags the scorer knows about.
var TrackedAnalytics = []AnalyticsFlag{AnalyticsGoogle, AnalyticsFacebookPixel}

// SpeedScores holds page-speed measurements per device class.
// A nil value means the measurement is unavailable, not zero.
type SpeedScores struct {
	Desktop *int `json:"desktop,omitempty"`
	Mobile  *int `json:"mobile,omitempty"`
}

// SourceSet records which provider payloads contributed to a signal snapshot.
// Rules that depend on a source are suppressed while that source is absent.
type SourceSet struct {
	Places bool `json:"places"`
	Ads    bool `json:"ads"`
	SeoPpc bool `json:"seo_ppc"`
}

// BusinessSignals is the canonical, normalized view of everything known
// about a business for a single scoring run. Pointer fields are unknown
// when nil; they are never substituted with zero without an explicit,
// per-factor fallback in the scoring package.
type BusinessSignals struct {
	Rating      *float64 `json:"rating,omitempty"` // [0,5]
	ReviewCount int      `json:"review_count"`
	HasWebsite  bool     `json:"has_website"`
	HasPhone    bool     `json:"has_phone"`
	HasAddress  bool     `json:"has_address"`

	AdCount int `json:"ad_count"`

	SerpPosition *int `json:"serp_position,omitempty"` // >= 1, lower is better; nil = not ranked

	SchemaFlags    []SchemaFlag    `json:"schema_flags,omitempty"`
	AnalyticsFlags []AnalyticsFlag `json:"analytics_flags,omitempty"`
	Speed          SpeedScores     `json:"speed"`

	BacklinkCount   *int64 `json:"backlink_count,omitempty"`
	DomainAuthority *int64 `json:"domain_authority,omitempty"`
	MonthlyTraffic  *int64 `json:"monthly_traffic,omitempty"`

	PPCRunningAds bool `json:"ppc_running_ads"`
	PPCAdCount    int  `json:"ppc_ad_count"`

	Sources SourceSet `json:"sources"`
}

// HasSchema reports whether the given schema flag was detected.
func (s *BusinessSignals) HasSchema(f SchemaFlag) bool {
	for _, have := range s.SchemaFlags {
		if have == f {
			return true
		}
	}
	return false
}

// HasAnalytics reports whether the given analytics tag was detected.
func (s *BusinessSignals) HasAnalytics(f AnalyticsFlag) bool {
	for _, have := range s.AnalyticsFlags {
		if have == f {
			return true
		}
	}
	return false
}

// ScoreBreakdown holds the four sub-scores and the composite lead score.
// Lead is always derived from the other four; it is never persisted on its own.
type ScoreBreakdown struct {
	Presence    int `json:"presence"`
	SEO         int `json:"seo"`
	AdsActivity int `json:"ads_activity"`
	Engagement  int `json:"engagement"`
	Lead        int `json:"lead"`
}

// OpportunityBreakdown holds the per-factor opportunity credits.
// Factor caps sum to exactly 100, so Total is always in [0,100].
type OpportunityBreakdown struct {
	SerpPosition int `json:"serp_position"`
	Schemas      int `json:"schemas"`
	Analytics    int `json:"analytics"`
	SpeedScores  int `json:"speed_scores"`
	PPCStatus    int `json:"ppc_status"`
	Total        int `json:"total"`
}

// Comparison tags how a competitor stacks up against the subject business.
type Comparison string

const (
	ComparisonBetter Comparison = "better"
	ComparisonWorse  Comparison = "worse"
	ComparisonEqual  Comparison = "equal"
)

// CompetitorSummary is the reduced view of a nearby business kept on a profile.
type CompetitorSummary struct {
	Name        string     `json:"name"`
	Domain      string     `json:"domain,omitempty"`
	Rating      float64    `json:"rating"`
	ReviewCount int        `json:"review_count"`
	Comparison  Comparison `json:"comparison"`
}

// Recommendation is a single improvement suggestion with its priority
// (1 high, 2 medium, 3 low).
type Recommendation struct {
	Text     string `json:"text"`
	Priority int    `json:"priority"`
}

// BusinessProfile is the persisted result of enriching and scoring a business.
// A re-score replaces the whole record; breakdowns are never patched in place.
type BusinessProfile struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`

	Signals     BusinessSignals      `json:"signals"`
	Scores      ScoreBreakdown       `json:"scores"`
	Opportunity OpportunityBreakdown `json:"opportunity"`

	Recommendations []Recommendation    `json:"recommendations,omitempty"`
	Competitors     []CompetitorSummary `json:"competitors,omitempty"`

	// Sequence is the enrichment sequence number that produced this record.
	// Stale recomputes carry a lower sequence and are discarded, not merged.
	Sequence int64 `json:"sequence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
