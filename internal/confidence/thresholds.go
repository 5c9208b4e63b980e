package confidence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMinSignals     = 2
	DefaultHedgeThreshold = 3
	DefaultMinLength      = 200
)

// Thresholds are calibrated defaults, not derived constants. They can be
// overridden from the "confidence" section of the routing file.
type Thresholds struct {
	MinSignals         int      `yaml:"min_signals"`
	HedgeThreshold     int      `yaml:"hedge_threshold"`
	MinLength          int      `yaml:"min_length"`
	UncertaintyPhrases []string `yaml:"uncertainty_phrases"`
	HedgePhrases       []string `yaml:"hedge_phrases"`
}

var defaultUncertaintyPhrases = []string{
	"i'm not sure",
	"i am not sure",
	"i'm not certain",
	"i am not certain",
	"i don't know",
	"i do not know",
	"i'm unsure",
	"it is unclear",
	"it's unclear",
	"cannot confirm",
	"can't confirm",
	"unable to verify",
	"unable to confirm",
	"i couldn't find",
	"i could not find",
	"no reliable information",
}

var defaultHedgePhrases = []string{
	"might",
	"may",
	"maybe",
	"possibly",
	"perhaps",
	"probably",
	"likely",
	"could be",
	"seems",
	"appears to",
	"i think",
	"i believe",
	"generally",
	"typically",
}

// DefaultThresholds returns a fresh copy of the defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSignals:         DefaultMinSignals,
		HedgeThreshold:     DefaultHedgeThreshold,
		MinLength:          DefaultMinLength,
		UncertaintyPhrases: append([]string(nil), defaultUncertaintyPhrases...),
		HedgePhrases:       append([]string(nil), defaultHedgePhrases...),
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MinSignals <= 0 {
		t.MinSignals = d.MinSignals
	}
	if t.HedgeThreshold <= 0 {
		t.HedgeThreshold = d.HedgeThreshold
	}
	if t.MinLength <= 0 {
		t.MinLength = d.MinLength
	}
	if len(t.UncertaintyPhrases) == 0 {
		t.UncertaintyPhrases = d.UncertaintyPhrases
	}
	if len(t.HedgePhrases) == 0 {
		t.HedgePhrases = d.HedgePhrases
	}
	return t
}

// LoadThresholds reads the "confidence" section of a YAML file. An empty path
// or a file without the section yields the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	if path == "" {
		return DefaultThresholds(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}
	var doc struct {
		Confidence Thresholds `yaml:"confidence"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}
	if doc.Confidence.MinSignals > 4 {
		return Thresholds{}, fmt.Errorf("confidence.min_signals must be at most 4, got %d", doc.Confidence.MinSignals)
	}
	return doc.Confidence.withDefaults(), nil
}
