package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"elms/internal/platform/querier"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

type OutboxEvent struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       []byte
	Status        string
	RetryCount    int
	NextRetryAt   time.Time
}

// NewEvent marshals payload and stamps a fresh id.
func NewEvent(topic, aggregateType, aggregateID, eventType string, payload any) (OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		Payload:       raw,
		Status:        OutboxStatusPending,
	}, nil
}

func ValidateOutboxEvent(event OutboxEvent) error {
	if event.ID == "" {
		return errors.New("outbox id is required")
	}
	if event.Topic == "" {
		return errors.New("outbox topic is required")
	}
	if len(event.Payload) == 0 {
		return errors.New("outbox payload is required")
	}
	switch event.Status {
	case OutboxStatusPending, OutboxStatusSent, OutboxStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid outbox status: %s", event.Status)
	}
}

// OutboxStore persists events; bind it to the business transaction so an
// event exists iff the change it describes committed.
type OutboxStore struct {
	DB querier.Querier
}

func NewOutboxStore(db querier.Querier) *OutboxStore {
	return &OutboxStore{DB: db}
}

func (s *OutboxStore) Create(ctx context.Context, event OutboxEvent) error {
	if err := ValidateOutboxEvent(event); err != nil {
		return err
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, topic, payload, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Topic, event.Payload, event.Status)
	return err
}

func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, aggregate_type, aggregate_id, event_type, topic, payload, status, retry_count,
           COALESCE(next_retry_at, created_at)
    FROM outbox_events
    WHERE status IN ($1, $2)
      AND (next_retry_at IS NULL OR next_retry_at <= now())
    ORDER BY created_at ASC
    LIMIT $3
  `, OutboxStatusPending, OutboxStatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OutboxEvent, 0, limit)
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Topic, &e.Payload, &e.Status, &e.RetryCount, &e.NextRetryAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE outbox_events
    SET status = $2, processed_at = now(), error_message = NULL
    WHERE id = $1
  `, id, OutboxStatusSent)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE outbox_events
    SET status = $2,
        retry_count = retry_count + 1,
        error_message = LEFT($3, 500),
        next_retry_at = now() + (LEAST(retry_count + 1, 10) * INTERVAL '15 seconds')
    WHERE id = $1
  `, id, OutboxStatusFailed, reason)
	return err
}
