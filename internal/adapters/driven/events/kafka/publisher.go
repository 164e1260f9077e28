// Package kafka publishes sync events to a Kafka topic.
//
// Each event is one JSON message keyed by SyncEvent.Key, so every event for
// a document lands on the same partition and stays ordered.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

// Ensure Publisher implements the interface.
var _ driven.EventPublisher = (*Publisher)(nil)

// Defaults.
const (
	DefaultPublishTimeout = 5 * time.Second
	defaultBatchTimeout   = 10 * time.Millisecond
)

// ErrNoBrokers is returned by New when the broker list is empty.
var ErrNoBrokers = errors.New("kafka: at least one broker is required")

// Config holds publisher settings.
type Config struct {
	// Brokers is the bootstrap list (host:port).
	Brokers []string

	// Topic receives every event. Defaults to domain.DefaultEventTopic.
	Topic string

	// PublishTimeout bounds a single write. Defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events with a synchronous kafka-go writer.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *zap.SugaredLogger
}

// New creates a publisher for cfg.
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		cfg.Topic = domain.DefaultEventTopic
	}

	log := logger.Named("kafka")
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           defaultBatchTimeout,
		AllowAutoTopicCreation: true,
		ErrorLogger:            kafkago.LoggerFunc(log.Errorf),
	}
	return newPublisher(w, cfg.PublishTimeout, log), nil
}

func newPublisher(w messageWriter, timeout time.Duration, log *zap.SugaredLogger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Publisher{writer: w, timeout: timeout, log: log}
}

// Publish writes one event and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, event domain.SyncEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "schema_version", Value: []byte(event.SchemaVersion)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.Debugw("event published", "type", event.Type, "key", event.Key(), "event_id", event.EventID)
	return nil
}

// Close flushes pending writes and closes broker connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
