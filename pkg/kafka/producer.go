package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultProduceTimeout = 5 * time.Second

// ProducerConfig configures a franz-go producer.
type ProducerConfig struct {
	Brokers  []string
	ClientID string
	Timeout  time.Duration
}

// Producer publishes records synchronously.
type Producer struct {
	client  *kgo.Client
	logger  *logrus.Logger
	timeout time.Duration
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger *logrus.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "almanac"
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProduceTimeout
	}
	return &Producer{client: client, logger: logger, timeout: timeout}, nil
}

func (p *Producer) Close() error {
	p.client.Close()
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka ping failed: %w", err)
	}
	return nil
}

// ProduceMessage publishes one record and waits for the broker ack.
func (p *Producer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.client.ProduceSync(ctx, NewRecord(topic, key, value, headers))
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// PublishJSON marshals v and publishes it under key.
func (p *Producer) PublishJSON(ctx context.Context, topic, key string, v any, headers map[string]string) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.ProduceMessage(ctx, topic, []byte(key), value, headers)
}

// NewRecord builds a record with headers in a stable order.
func NewRecord(topic string, key, value []byte, headers map[string]string) *kgo.Record {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if len(headers) == 0 {
		return record
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(headers[k])})
	}
	return record
}
