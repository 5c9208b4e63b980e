// Package confidence decides whether a model response is weak enough to be
// regenerated on a stronger model.
package confidence

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"frameworks/almanac/internal/intent"
)

// Verdict is recomputed for every response and never stored.
type Verdict struct {
	ShouldEscalate bool     `json:"should_escalate"`
	Reasons        []string `json:"reasons,omitempty"`
}

// Evaluator scores a response. Implementations must be pure.
type Evaluator interface {
	Evaluate(response string, category intent.TaskCategory) Verdict
}

// Heuristic combines four independent signals and escalates when enough of
// them fire.
type Heuristic struct {
	th       Thresholds
	hedgeRE  *regexp.Regexp
	unsureRE *regexp.Regexp
}

var citationRE = regexp.MustCompile(`\[[^\[\]\n]+\]`)

// NewHeuristic compiles the phrase lists in th. Zero-valued fields take the
// defaults.
func NewHeuristic(th Thresholds) *Heuristic {
	th = th.withDefaults()
	return &Heuristic{
		th:       th,
		hedgeRE:  phraseRegexp(th.HedgePhrases),
		unsureRE: phraseRegexp(th.UncertaintyPhrases),
	}
}

// Thresholds returns the effective configuration.
func (h *Heuristic) Thresholds() Thresholds {
	return h.th
}

func (h *Heuristic) Evaluate(response string, category intent.TaskCategory) Verdict {
	lower := strings.ToLower(response)
	var reasons []string

	if phrase := h.unsureRE.FindString(lower); phrase != "" {
		reasons = append(reasons, fmt.Sprintf("uncertainty phrase %q", phrase))
	}
	if hedges := h.countHedges(lower); hedges >= h.th.HedgeThreshold {
		reasons = append(reasons, fmt.Sprintf("%d hedging phrases", hedges))
	}
	if category == intent.KnowledgeIngestion && !citationRE.MatchString(response) && !strings.Contains(lower, "source") {
		reasons = append(reasons, "no citation or source reference")
	}
	if category == intent.KnowledgeIngestion || category == intent.Extraction {
		if n := utf8.RuneCountInString(response); n < h.th.MinLength {
			reasons = append(reasons, fmt.Sprintf("response too short (%d < %d characters)", n, h.th.MinLength))
		}
	}

	return Verdict{
		ShouldEscalate: len(reasons) >= h.th.MinSignals,
		Reasons:        reasons,
	}
}

func (h *Heuristic) countHedges(lower string) int {
	n := 0
	for _, loc := range h.hedgeRE.FindAllStringIndex(lower, -1) {
		if lower[loc[0]:loc[1]] == "may" && isDateMay(lower[:loc[0]], lower[loc[1]:]) {
			continue
		}
		n++
	}
	return n
}

// isDateMay reports whether "may" sits next to a day or year, as in
// "effective May 2024" or "1 May".
func isDateMay(before, after string) bool {
	after = strings.TrimLeft(after, " ")
	if after != "" && after[0] >= '0' && after[0] <= '9' {
		return true
	}
	before = strings.TrimRight(before, " ")
	before = strings.TrimSuffix(before, "st")
	before = strings.TrimSuffix(before, "nd")
	before = strings.TrimSuffix(before, "rd")
	before = strings.TrimSuffix(before, "th")
	return before != "" && before[len(before)-1] >= '0' && before[len(before)-1] <= '9'
}

// phraseRegexp matches any phrase on word boundaries. Phrases are matched
// against lower-cased text.
func phraseRegexp(phrases []string) *regexp.Regexp {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	if len(quoted) == 0 {
		return regexp.MustCompile(`\b\B`)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
