package capture

import "slices"

// Snapshot is the serialisable form of a Context. ReadyToDraft is included
// for readers but ignored by Restore.
type Snapshot struct {
	Mode             Mode        `json:"mode"`
	Topic            string      `json:"topic,omitempty"`
	Domain           Domain      `json:"domain,omitempty"`
	Geographic       *Geographic `json:"geographic,omitempty"`
	MissingInfo      []string    `json:"missing_info"`
	ResearchedTopics []string    `json:"researched_topics"`
	Confidence       float64     `json:"confidence"`
	ReadyToDraft     bool        `json:"ready_to_draft"`
	Draft            *Draft      `json:"draft,omitempty"`
	PendingEntryID   string      `json:"pending_entry_id,omitempty"`
}

func (c *Context) Snapshot() Snapshot {
	s := Snapshot{
		Mode:             c.mode,
		Topic:            c.topic,
		Domain:           c.domain,
		MissingInfo:      c.MissingInfo(),
		ResearchedTopics: c.ResearchedTopics(),
		Confidence:       c.confidence,
		ReadyToDraft:     c.ReadyToDraft(),
		PendingEntryID:   c.pendingEntryID,
	}
	if s.MissingInfo == nil {
		s.MissingInfo = []string{}
	}
	if c.geographic != nil {
		g := *c.geographic
		s.Geographic = &g
	}
	if c.draft != nil {
		d := *c.draft
		s.Draft = &d
	}
	return s
}

// Restore rebuilds a Context through the validating mutators, so a tampered
// snapshot cannot produce a state the mutators would reject.
func Restore(s Snapshot) (*Context, error) {
	mode := s.Mode
	if mode == "" {
		mode = ModeQuery
	}
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	c := NewContext(mode)
	c.SetTopic(s.Topic)
	if err := c.SetDomain(s.Domain); err != nil {
		return nil, err
	}
	if s.Geographic != nil {
		if err := c.SetGeographic(*s.Geographic); err != nil {
			return nil, err
		}
	}
	for _, q := range s.MissingInfo {
		c.AddMissingInfo(q)
	}
	for _, t := range s.ResearchedTopics {
		c.AddResearchedTopic(t)
	}
	c.UpdateConfidence(s.Confidence)
	if s.Draft != nil {
		d := *s.Draft
		d.Metadata.Tags = slices.Clone(d.Metadata.Tags)
		d.Metadata.SourceURLs = slices.Clone(d.Metadata.SourceURLs)
		c.AttachDraft(d, s.PendingEntryID)
	} else {
		c.pendingEntryID = s.PendingEntryID
	}
	return c, nil
}
