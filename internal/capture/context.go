package capture

import (
	"math"
	"slices"
	"strings"
	"time"
)

// ReadyConfidence is the minimum confidence for ReadyToDraft.
const ReadyConfidence = 0.7

// needsReviewBelow marks drafts with weaker confidence for closer review.
const needsReviewBelow = 0.85

var now = time.Now

// Context is the knowledge-capture state of one conversation. It has a single
// writer (the turn that owns the conversation) and is not safe for concurrent
// use.
type Context struct {
	mode             Mode
	topic            string
	domain           Domain
	geographic       *Geographic
	missingInfo      []string
	researchedTopics map[string]struct{}
	confidence       float64
	draft            *Draft
	pendingEntryID   string
}

func NewContext(mode Mode) *Context {
	if !mode.Valid() {
		mode = ModeQuery
	}
	return &Context{mode: mode, researchedTopics: map[string]struct{}{}}
}

func (c *Context) Mode() Mode          { return c.mode }
func (c *Context) Topic() string       { return c.topic }
func (c *Context) Domain() Domain      { return c.domain }
func (c *Context) Confidence() float64 { return c.confidence }

func (c *Context) Geographic() (Geographic, bool) {
	if c.geographic == nil {
		return Geographic{}, false
	}
	return *c.geographic, true
}

func (c *Context) MissingInfo() []string {
	return slices.Clone(c.missingInfo)
}

// ResearchedTopics returns the researched topics in sorted order.
func (c *Context) ResearchedTopics() []string {
	out := make([]string, 0, len(c.researchedTopics))
	for t := range c.researchedTopics {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (c *Context) Draft() (Draft, bool) {
	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

func (c *Context) PendingEntryID() string { return c.pendingEntryID }

// SwitchMode moves to mode and resets every other field, discarding any draft.
func (c *Context) SwitchMode(mode Mode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	*c = *NewContext(mode)
	return nil
}

// Reset clears the context but keeps the current mode.
func (c *Context) Reset() {
	*c = *NewContext(c.mode)
}

func (c *Context) SetTopic(topic string) {
	c.topic = strings.TrimSpace(topic)
}

// SetDomain sets the domain. The empty domain clears it.
func (c *Context) SetDomain(d Domain) error {
	d = Domain(strings.ToLower(strings.TrimSpace(string(d))))
	if d != "" && !d.Valid() {
		return ErrInvalidDomain
	}
	c.domain = d
	return nil
}

func (c *Context) SetGeographic(g Geographic) error {
	g = g.normalized()
	if err := g.Validate(); err != nil {
		return err
	}
	c.geographic = &g
	return nil
}

func (c *Context) ClearGeographic() {
	c.geographic = nil
}

// AddMissingInfo appends an open question unless it is blank or already
// listed.
func (c *Context) AddMissingInfo(question string) {
	question = strings.TrimSpace(question)
	if question == "" || slices.Contains(c.missingInfo, question) {
		return
	}
	c.missingInfo = append(c.missingInfo, question)
}

// RemoveMissingInfo drops a resolved question and reports whether it was
// present.
func (c *Context) RemoveMissingInfo(question string) bool {
	question = strings.TrimSpace(question)
	idx := slices.Index(c.missingInfo, question)
	if idx < 0 {
		return false
	}
	c.missingInfo = slices.Delete(c.missingInfo, idx, idx+1)
	return true
}

func (c *Context) AddResearchedTopic(topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	if c.researchedTopics == nil {
		c.researchedTopics = map[string]struct{}{}
	}
	c.researchedTopics[topic] = struct{}{}
}

// UpdateConfidence stores v clamped to [0,1]. NaN counts as 0.
func (c *Context) UpdateConfidence(v float64) {
	switch {
	case math.IsNaN(v), v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	c.confidence = v
}

// ReadyToDraft is derived from the other fields on every call.
func (c *Context) ReadyToDraft() bool {
	return c.mode == ModeKnowledgeCapture &&
		c.topic != "" &&
		c.domain != "" &&
		c.geographic != nil &&
		len(c.missingInfo) == 0 &&
		c.confidence >= ReadyConfidence
}

// BuildDraft assembles a draft from the context. It does not attach it; the
// caller does that with AttachDraft once the pending entry exists.
func (c *Context) BuildDraft(in DraftInput) (Draft, error) {
	if !c.ReadyToDraft() {
		return Draft{}, ErrNotReady
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return Draft{}, ErrEmptyDraft
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = c.topic
	}
	sources := cleanList(in.SourceURLs)
	return Draft{
		Title:   title,
		Summary: strings.TrimSpace(in.Summary),
		Content: content,
		Metadata: DraftMetadata{
			Domain:      c.domain,
			Geographic:  *c.geographic,
			Tags:        cleanList(in.Tags),
			SourceURLs:  sources,
			Confidence:  c.confidence,
			NeedsReview: len(sources) == 0 || c.confidence < needsReviewBelow,
			CreatedAt:   now().UTC(),
		},
	}, nil
}

// AttachDraft records the draft and the id of the pending entry created for
// it.
func (c *Context) AttachDraft(d Draft, pendingEntryID string) {
	c.draft = &d
	c.pendingEntryID = pendingEntryID
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
