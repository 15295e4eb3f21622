package ranking

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RecencyTier awards Bonus to posts no older than MaxAge. Tiers are checked
// in order and the first match wins.
type RecencyTier struct {
	MaxAge time.Duration `yaml:"max_age"`
	Bonus  float64       `yaml:"bonus"`
}

// Weights holds every coefficient used by the scorer.
type Weights struct {
	Like    float64 `yaml:"like"`
	Comment float64 `yaml:"comment"`
	Share   float64 `yaml:"share"`
	View    float64 `yaml:"view"`

	Recency []RecencyTier `yaml:"recency"`

	InterestMatch float64 `yaml:"interest_match"`

	LongDescriptionChars int     `yaml:"long_description_chars"`
	LongDescription      float64 `yaml:"long_description"`
	HasMedia             float64 `yaml:"has_media"`
	Gallery              float64 `yaml:"gallery"`

	ReportedPenalty float64 `yaml:"reported_penalty"`
	Promoted        float64 `yaml:"promoted"`
}

// DefaultWeights returns the production coefficients.
func DefaultWeights() Weights {
	return Weights{
		Like:    2,
		Comment: 3,
		Share:   5,
		View:    0.1,
		Recency: []RecencyTier{
			{MaxAge: 24 * time.Hour, Bonus: 50},
			{MaxAge: 7 * 24 * time.Hour, Bonus: 25},
			{MaxAge: 30 * 24 * time.Hour, Bonus: 10},
		},
		InterestMatch:        20,
		LongDescriptionChars: 100,
		LongDescription:      10,
		HasMedia:             15,
		Gallery:              5,
		ReportedPenalty:      100,
		Promoted:             30,
	}
}

// LoadWeights reads a YAML weights file on top of the defaults. Keys that are
// absent keep their default value.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read ranking weights: %w", err)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, fmt.Errorf("parse ranking weights: %w", err)
	}
	for i := 1; i < len(w.Recency); i++ {
		if w.Recency[i].MaxAge < w.Recency[i-1].MaxAge {
			return w, fmt.Errorf("recency tiers must be sorted by max_age")
		}
	}
	return w, nil
}
