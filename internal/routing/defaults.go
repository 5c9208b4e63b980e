package routing

import "frameworks/almanac/internal/intent"

const (
	ProfileEconomy  = "economy"
	ProfileStandard = "standard"
	ProfilePremium  = "premium"
	ProfileLocal    = "local"
)

// DefaultProfiles is the built-in catalogue. Prices are USD per million
// tokens.
func DefaultProfiles() []ModelProfile {
	return []ModelProfile{
		{
			Key:               ProfileEconomy,
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Tier:              TierEconomy,
			MaxOutputTokens:   2048,
			InputCostPerMTok:  0.15,
			OutputCostPerMTok: 0.60,
			APIKeyEnv:         "OPENAI_API_KEY",
		},
		{
			Key:               ProfileStandard,
			Provider:          "anthropic",
			Model:             "claude-3-5-haiku-latest",
			Tier:              TierStandard,
			MaxOutputTokens:   4096,
			InputCostPerMTok:  0.80,
			OutputCostPerMTok: 4.00,
			APIKeyEnv:         "ANTHROPIC_API_KEY",
		},
		{
			Key:               ProfilePremium,
			Provider:          "anthropic",
			Model:             "claude-sonnet-4-5",
			Tier:              TierPremium,
			MaxOutputTokens:   8192,
			InputCostPerMTok:  3.00,
			OutputCostPerMTok: 15.00,
			APIKeyEnv:         "ANTHROPIC_API_KEY",
		},
		{
			Key:             ProfileLocal,
			Provider:        "ollama",
			Model:           "llama3.1",
			Tier:            TierEconomy,
			MaxOutputTokens: 2048,
		},
	}
}

// DefaultRoutes sends cheap read-only work to the economy tier and anything
// that writes to the knowledge base, or must be right, to standard with a
// premium escalation.
func DefaultRoutes() map[intent.TaskCategory]RoutingEntry {
	return map[intent.TaskCategory]RoutingEntry{
		intent.KnowledgeIngestion: {Primary: ProfileStandard, Fallback: ProfileEconomy, Escalation: ProfilePremium},
		intent.Query:              {Primary: ProfileEconomy, Fallback: ProfileStandard, Escalation: ProfileStandard},
		intent.Extraction:         {Primary: ProfileStandard, Fallback: ProfileEconomy, Escalation: ProfilePremium},
		intent.Summarization:      {Primary: ProfileEconomy, Fallback: ProfileStandard, Escalation: ProfileStandard},
		intent.Verification:       {Primary: ProfileStandard, Fallback: ProfileEconomy, Escalation: ProfilePremium},
	}
}

// DefaultTable builds the table from the built-in catalogue.
func DefaultTable() *Table {
	t, err := NewTable(DefaultProfiles(), DefaultRoutes())
	if err != nil {
		panic(err)
	}
	return t
}
