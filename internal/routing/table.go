// Package routing holds the static model catalogue and the per-category
// routing table.
package routing

import (
	"fmt"
	"sort"
	"strings"

	"frameworks/almanac/internal/intent"
)

type ModelTier string

const (
	TierEconomy  ModelTier = "economy"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
)

// Rank orders tiers by cost and capability. Unknown tiers rank -1.
func (t ModelTier) Rank() int {
	switch t {
	case TierEconomy:
		return 0
	case TierStandard:
		return 1
	case TierPremium:
		return 2
	}
	return -1
}

type ModelProfile struct {
	Key               string    `yaml:"key" json:"key"`
	Provider          string    `yaml:"provider" json:"provider"`
	Model             string    `yaml:"model" json:"model"`
	Tier              ModelTier `yaml:"tier" json:"tier"`
	MaxOutputTokens   int       `yaml:"max_output_tokens" json:"max_output_tokens"`
	InputCostPerMTok  float64   `yaml:"input_cost_per_mtok" json:"input_cost_per_mtok"`
	OutputCostPerMTok float64   `yaml:"output_cost_per_mtok" json:"output_cost_per_mtok"`
	APIURL            string    `yaml:"api_url" json:"api_url,omitempty"`
	APIKeyEnv         string    `yaml:"api_key_env" json:"-"`
}

// EstimateCost returns the USD cost of a call with the given token counts.
func (p ModelProfile) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputCostPerMTok/1e6 + float64(outputTokens)*p.OutputCostPerMTok/1e6
}

// RoutingEntry names profile keys. Fallback is used only when the primary
// call fails at the transport level; Escalation only after a low-confidence
// verdict.
type RoutingEntry struct {
	Primary    string `yaml:"primary" json:"primary"`
	Fallback   string `yaml:"fallback" json:"fallback"`
	Escalation string `yaml:"escalation" json:"escalation"`
}

// ConfigError reports a routing table that cannot serve requests.
type ConfigError struct {
	Category intent.TaskCategory
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("routing config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("routing config: %s.%s: %s", e.Category, e.Field, e.Reason)
}

// Table is read-only after construction and safe for concurrent use.
type Table struct {
	profiles map[string]ModelProfile
	routes   map[intent.TaskCategory]RoutingEntry
}

// NewTable validates that every category has a route and that every route
// slot names a known profile.
func NewTable(profiles []ModelProfile, routes map[intent.TaskCategory]RoutingEntry) (*Table, error) {
	t := &Table{
		profiles: make(map[string]ModelProfile, len(profiles)),
		routes:   make(map[intent.TaskCategory]RoutingEntry, len(routes)),
	}
	for _, p := range profiles {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			return nil, &ConfigError{Field: "profiles", Reason: "profile without key"}
		}
		if _, dup := t.profiles[key]; dup {
			return nil, &ConfigError{Field: "profiles", Reason: fmt.Sprintf("duplicate profile %q", key)}
		}
		if p.Tier.Rank() < 0 {
			return nil, &ConfigError{Field: "profiles", Reason: fmt.Sprintf("profile %q has unknown tier %q", key, p.Tier)}
		}
		if p.Provider == "" || p.Model == "" {
			return nil, &ConfigError{Field: "profiles", Reason: fmt.Sprintf("profile %q needs provider and model", key)}
		}
		p.Key = key
		t.profiles[key] = p
	}

	for category, entry := range routes {
		if !category.Valid() {
			return nil, &ConfigError{Category: category, Field: "routes", Reason: "unknown category"}
		}
		t.routes[category] = entry
	}
	for _, category := range intent.Categories {
		entry, ok := t.routes[category]
		if !ok {
			return nil, &ConfigError{Category: category, Field: "routes", Reason: "no route configured"}
		}
		slots := []struct{ name, key string }{
			{"primary", entry.Primary},
			{"fallback", entry.Fallback},
			{"escalation", entry.Escalation},
		}
		for _, slot := range slots {
			if _, ok := t.profiles[slot.key]; !ok {
				return nil, &ConfigError{Category: category, Field: slot.name, Reason: fmt.Sprintf("unknown profile %q", slot.key)}
			}
		}
	}
	return t, nil
}

// SelectModel returns the escalation profile when escalate is set, otherwise
// the primary. Lookups are idempotent.
func (t *Table) SelectModel(category intent.TaskCategory, escalate bool) (ModelProfile, error) {
	entry, ok := t.routes[category]
	if !ok {
		return ModelProfile{}, &ConfigError{Category: category, Field: "routes", Reason: "no route configured"}
	}
	if escalate {
		return t.profiles[entry.Escalation], nil
	}
	return t.profiles[entry.Primary], nil
}

// Fallback returns the profile to retry with after a transport failure.
func (t *Table) Fallback(category intent.TaskCategory) (ModelProfile, error) {
	entry, ok := t.routes[category]
	if !ok {
		return ModelProfile{}, &ConfigError{Category: category, Field: "routes", Reason: "no route configured"}
	}
	return t.profiles[entry.Fallback], nil
}

// Profile looks up a profile by key.
func (t *Table) Profile(key string) (ModelProfile, bool) {
	p, ok := t.profiles[key]
	return p, ok
}

// Route returns the raw entry for a category.
func (t *Table) Route(category intent.TaskCategory) (RoutingEntry, bool) {
	e, ok := t.routes[category]
	return e, ok
}

// Profiles returns all profiles sorted by tier then key.
func (t *Table) Profiles() []ModelProfile {
	out := make([]ModelProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier.Rank() != out[j].Tier.Rank() {
			return out[i].Tier.Rank() < out[j].Tier.Rank()
		}
		return out[i].Key < out[j].Key
	})
	return out
}
