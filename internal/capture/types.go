package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeQuery            Mode = "query"
	ModeKnowledgeCapture Mode = "knowledge_capture"
	ModeValidation       Mode = "validation"
	ModeInvestigation    Mode = "investigation"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeQuery, ModeKnowledgeCapture, ModeValidation, ModeInvestigation:
		return true
	}
	return false
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

type Domain string

const (
	DomainLegal      Domain = "legal"
	DomainAccounting Domain = "accounting"
	DomainTechnical  Domain = "technical"
	DomainBusiness   Domain = "business"
	DomainCompliance Domain = "compliance"
	DomainGeneral    Domain = "general"
)

var Domains = []Domain{DomainLegal, DomainAccounting, DomainTechnical, DomainBusiness, DomainCompliance, DomainGeneral}

func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeRegional Scope = "regional"
	ScopeCountry  Scope = "country"
)

type Geographic struct {
	Scope       Scope  `json:"scope"`
	CountryCode string `json:"country_code,omitempty"`
	Region      string `json:"region,omitempty"`
	State       string `json:"state,omitempty"`
}

// Validate checks the scope and the field each scope needs: a two-letter
// country code for country, a region name for regional.
func (g Geographic) Validate() error {
	switch g.Scope {
	case ScopeGlobal:
		return nil
	case ScopeRegional:
		if strings.TrimSpace(g.Region) == "" {
			return fmt.Errorf("%w: regional scope requires a region", ErrInvalidGeographic)
		}
		return nil
	case ScopeCountry:
		if len(strings.TrimSpace(g.CountryCode)) != 2 {
			return fmt.Errorf("%w: country scope requires a two-letter country code", ErrInvalidGeographic)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidGeographic, g.Scope)
	}
}

func (g Geographic) normalized() Geographic {
	g.CountryCode = strings.ToUpper(strings.TrimSpace(g.CountryCode))
	g.Region = strings.TrimSpace(g.Region)
	g.State = strings.TrimSpace(g.State)
	return g
}

func (g Geographic) String() string {
	parts := []string{string(g.Scope)}
	for _, p := range []string{g.CountryCode, g.Region, g.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

type DraftMetadata struct {
	Domain      Domain     `json:"domain"`
	Geographic  Geographic `json:"geographic"`
	Tags        []string   `json:"tags,omitempty"`
	SourceURLs  []string   `json:"source_urls,omitempty"`
	Confidence  float64    `json:"confidence"`
	NeedsReview bool       `json:"needs_review"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Draft is a proposed knowledge entry built from a ready context. It does
// not reference the conversation it came from.
type Draft struct {
	Title    string        `json:"title"`
	Summary  string        `json:"summary"`
	Content  string        `json:"content"`
	Metadata DraftMetadata `json:"metadata"`
}

type DraftInput struct {
	Title      string
	Summary    string
	Content    string
	Tags       []string
	SourceURLs []string
}

var (
	ErrInvalidMode       = errors.New("invalid conversation mode")
	ErrInvalidDomain     = errors.New("invalid knowledge domain")
	ErrInvalidGeographic = errors.New("invalid geographic scope")
	ErrNotReady          = errors.New("conversation context is not ready to draft")
	ErrEmptyDraft        = errors.New("draft content is required")
)
