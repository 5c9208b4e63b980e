// Package intent maps free-form user text to a task category using fixed
// keyword lists.
package intent

import (
	"fmt"
	"strings"
)

type TaskCategory string

const (
	KnowledgeIngestion TaskCategory = "knowledge_ingestion"
	Query              TaskCategory = "query"
	Extraction         TaskCategory = "extraction"
	Summarization      TaskCategory = "summarization"
	Verification       TaskCategory = "verification"
)

// Categories lists every category in classification order, with the default
// last.
var Categories = []TaskCategory{
	KnowledgeIngestion,
	Extraction,
	Summarization,
	Verification,
	Query,
}

func (c TaskCategory) Valid() bool {
	switch c {
	case KnowledgeIngestion, Query, Extraction, Summarization, Verification:
		return true
	}
	return false
}

// ParseCategory accepts the canonical names, case-insensitively.
func ParseCategory(s string) (TaskCategory, error) {
	c := TaskCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown task category %q", s)
	}
	return c, nil
}

var (
	ingestionPatterns = []string{
		"remember this",
		"remember that",
		"please remember",
		"save this",
		"store this",
		"record this",
		"memorize",
		"memorise",
		"keep in mind",
		"note that",
		"add this to",
		"add to the knowledge",
		"add to knowledge",
		"knowledge base entry",
		"ingest",
		"learn this",
	}
	extractionPatterns = []string{
		"extract",
		"pull out",
		"list all",
		"find all",
		"identify all",
		"parse",
		"fields from",
		"entities",
	}
	summarizationPatterns = []string{
		"summarize",
		"summarise",
		"summary",
		"tl;dr",
		"tldr",
		"condense",
		"recap",
		"overview of",
		"brief me",
		"key points",
	}
	verificationPatterns = []string{
		"verify",
		"fact check",
		"fact-check",
		"is it true",
		"is this true",
		"is that true",
		"is this correct",
		"is that correct",
		"is this accurate",
		"double check",
		"double-check",
		"confirm",
		"validate",
	}
)

// ordered pairs each category with its patterns. The order is a policy:
// ingestion phrases win over overlapping extraction or summarization ones.
var ordered = []struct {
	category TaskCategory
	patterns []string
}{
	{KnowledgeIngestion, ingestionPatterns},
	{Extraction, extractionPatterns},
	{Summarization, summarizationPatterns},
	{Verification, verificationPatterns},
}

// Classify returns the first category whose patterns occur in text, or Query.
// It is pure and total.
func Classify(text string) TaskCategory {
	lower := strings.ToLower(text)
	for _, entry := range ordered {
		if containsAny(lower, entry.patterns) {
			return entry.category
		}
	}
	return Query
}

// Patterns returns a copy of the pattern list for a category. Query has none.
func Patterns(c TaskCategory) []string {
	for _, entry := range ordered {
		if entry.category == c {
			return append([]string(nil), entry.patterns...)
		}
	}
	return nil
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
