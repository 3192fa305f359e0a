package events

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

//go:generate mockgen -source=relay.go -destination=mock/relay_mock.go -package=mock

// Writer is the slice of *kafkago.Writer the relay needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type OutboxRepository interface {
	ListPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// NewKafkaWriter returns a kafka writer, or a writer that only logs when no
// brokers are configured.
func NewKafkaWriter(brokers []string, log *zap.Logger) Writer {
	if len(brokers) == 0 {
		return logWriter{log: log.Named("events.log_writer")}
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

type logWriter struct {
	log *zap.Logger
}

func (l logWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, msg := range msgs {
		l.log.Info("event published",
			zap.String("topic", msg.Topic),
			zap.ByteString("key", msg.Key),
			zap.Int("bytes", len(msg.Value)),
		)
	}
	return nil
}

func Topic(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

type Relay struct {
	repo      OutboxRepository
	writer    Writer
	log       *zap.Logger
	BatchSize int
}

func NewRelay(repo OutboxRepository, writer Writer, log *zap.Logger) *Relay {
	return &Relay{repo: repo, writer: writer, log: log.Named("events.relay"), BatchSize: 50}
}

type RelayResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// RunOnce publishes one batch of pending events. Publish failures are
// recorded on the event for a later retry and do not fail the batch.
func (r *Relay) RunOnce(ctx context.Context) (RelayResult, error) {
	var result RelayResult
	pending, err := r.repo.ListPending(ctx, r.BatchSize)
	if err != nil {
		return result, fmt.Errorf("list pending outbox events: %w", err)
	}

	for _, event := range pending {
		if err := r.writer.WriteMessages(ctx, toMessage(event)); err != nil {
			result.Failed++
			r.log.Warn("publish outbox event failed",
				zap.String("outbox_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			if markErr := r.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				r.log.Warn("mark outbox failed failed", zap.String("outbox_id", event.ID), zap.Error(markErr))
			}
			continue
		}
		if err := r.repo.MarkSent(ctx, event.ID); err != nil {
			r.log.Warn("mark outbox sent failed", zap.String("outbox_id", event.ID), zap.Error(err))
			continue
		}
		result.Sent++
	}
	if len(pending) > 0 {
		r.log.Info("outbox batch relayed", zap.Int("sent", result.Sent), zap.Int("failed", result.Failed))
	}
	return result, nil
}

func toMessage(event OutboxEvent) kafkago.Message {
	return kafkago.Message{
		Topic: event.Topic,
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
}
