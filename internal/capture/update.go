package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	captureOpen  = "[capture]"
	captureClose = "[/capture]"
)

// Update is an incremental change to a Context. Nil fields are left alone.
type Update struct {
	Topic            *string     `json:"topic,omitempty"`
	Domain           *Domain     `json:"domain,omitempty"`
	Geographic       *Geographic `json:"geographic,omitempty"`
	AddMissingInfo   []string    `json:"add_missing_info,omitempty"`
	ResolvedInfo     []string    `json:"resolved_missing_info,omitempty"`
	ResearchedTopics []string    `json:"researched_topics,omitempty"`
	Confidence       *float64    `json:"confidence,omitempty"`
}

func (u Update) IsZero() bool {
	return u.Topic == nil && u.Domain == nil && u.Geographic == nil && u.Confidence == nil &&
		len(u.AddMissingInfo) == 0 && len(u.ResolvedInfo) == 0 && len(u.ResearchedTopics) == 0
}

// Apply validates the whole update before changing anything, so a rejected
// update leaves the context untouched.
func (c *Context) Apply(u Update) error {
	var domain Domain
	if u.Domain != nil {
		domain = Domain(strings.ToLower(strings.TrimSpace(string(*u.Domain))))
		if domain != "" && !domain.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidDomain, *u.Domain)
		}
	}
	var geo Geographic
	if u.Geographic != nil {
		geo = u.Geographic.normalized()
		if err := geo.Validate(); err != nil {
			return err
		}
	}

	if u.Topic != nil {
		c.SetTopic(*u.Topic)
	}
	if u.Domain != nil {
		c.domain = domain
	}
	if u.Geographic != nil {
		c.geographic = &geo
	}
	for _, q := range u.ResolvedInfo {
		c.RemoveMissingInfo(q)
	}
	for _, q := range u.AddMissingInfo {
		c.AddMissingInfo(q)
	}
	for _, t := range u.ResearchedTopics {
		c.AddResearchedTopic(t)
	}
	if u.Confidence != nil {
		c.UpdateConfidence(*u.Confidence)
	}
	return nil
}

// ExtractUpdates strips every [capture]{json}[/capture] block from text and
// decodes the blocks it can. An unterminated block is dropped to the end of
// the text. Decode failures are joined into err; visible is always usable.
func ExtractUpdates(text string) (visible string, updates []Update, err error) {
	var builder strings.Builder
	var errs []error
	remaining := text
	for {
		start := strings.Index(remaining, captureOpen)
		if start == -1 {
			builder.WriteString(remaining)
			break
		}
		builder.WriteString(remaining[:start])
		body := remaining[start+len(captureOpen):]
		end := strings.Index(body, captureClose)
		if end == -1 {
			errs = append(errs, errors.New("unterminated capture block"))
			break
		}
		payload := strings.TrimSpace(body[:end])
		remaining = body[end+len(captureClose):]

		var u Update
		if decodeErr := json.Unmarshal([]byte(payload), &u); decodeErr != nil {
			errs = append(errs, fmt.Errorf("decode capture block: %w", decodeErr))
			continue
		}
		if !u.IsZero() {
			updates = append(updates, u)
		}
	}
	return strings.TrimSpace(builder.String()), updates, errors.Join(errs...)
}
