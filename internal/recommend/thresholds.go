package recommend

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Thresholds are the tunable cutoffs used by the rule table.
type Thresholds struct {
	PresenceThreshold int     `yaml:"presence_threshold"`
	SEOThreshold      int     `yaml:"seo_threshold"`
	ReviewFloor       int     `yaml:"review_floor"`
	RatingFloor       float64 `yaml:"rating_floor"`
	SpeedFloor        int     `yaml:"speed_floor"`
	SchemaMissingMin  int     `yaml:"schema_missing_min"`
	SerpPageOne       int     `yaml:"serp_page_one"`
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PresenceThreshold: 70,
		SEOThreshold:      60,
		ReviewFloor:       50,
		RatingFloor:       4.0,
		SpeedFloor:        60,
		SchemaMissingMin:  3,
		SerpPageOne:       10,
	}
}

// LoadThresholds reads threshold overrides from a YAML file. Fields absent
// from the file keep their defaults.
func LoadThresholds(path string) (Thresholds, error) {
	cfg := DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "recommend: read thresholds %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "recommend: parse thresholds %s", path)
	}
	return cfg, nil
}
