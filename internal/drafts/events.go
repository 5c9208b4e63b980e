package drafts

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	EventApproved EventType = "knowledge.approved"
	EventEdited   EventType = "knowledge.edited"
	EventRejected EventType = "knowledge.rejected"
)

func eventTypeFor(s Status) EventType {
	switch s {
	case StatusEdited:
		return EventEdited
	case StatusRejected:
		return EventRejected
	default:
		return EventApproved
	}
}

type ReviewEvent struct {
	Type       EventType `json:"type"`
	TenantID   string    `json:"tenant_id"`
	PendingID  string    `json:"pending_id"`
	DocumentID string    `json:"document_id,omitempty"`
	ReviewerID string    `json:"reviewer_id"`
	Title      string    `json:"title,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event ReviewEvent) error
}

// JSONProducer is the subset of the Kafka producer used for review events.
type JSONProducer interface {
	PublishJSON(ctx context.Context, topic, key string, v any, headers map[string]string) error
}

type KafkaPublisher struct {
	producer JSONProducer
	topic    string
}

func NewKafkaPublisher(producer JSONProducer, topic string) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if topic == "" {
		topic = "almanac.review_events"
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

// Publish keys events by tenant so one tenant's reviews stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event ReviewEvent) error {
	return p.producer.PublishJSON(ctx, p.topic, event.TenantID, event, map[string]string{
		"event_type": string(event.Type),
	})
}
