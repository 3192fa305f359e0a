// Package jobs runs background work through a bounded queue and records each
// run in job_runs.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"elms/internal/platform/events"
	"elms/internal/platform/querier"
)

const (
	JobOutboxRelay = "outbox_relay"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrUnknownJob = errors.New("unknown job type")

// Func does one unit of work and returns details stored on the run.
type Func func(context.Context) (any, error)

// RunStore records job runs.
type RunStore interface {
	StartRun(ctx context.Context, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

type Service struct {
	runs  RunStore
	log   *zap.Logger
	queue chan job

	mu       sync.RWMutex
	registry map[string]Func
}

type job struct {
	Type string
	Run  Func
}

func New(runs RunStore, log *zap.Logger) *Service {
	return &Service{
		runs:     runs,
		log:      log.Named("jobs"),
		queue:    make(chan job, 128),
		registry: map[string]Func{},
	}
}

func (s *Service) Register(jobType string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[jobType] = fn
}

func (s *Service) lookup(jobType string) (Func, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.registry[jobType]
	return fn, ok
}

// RegisterOutboxRelay wires the relay as the outbox_relay job.
func (s *Service) RegisterOutboxRelay(relay *events.Relay) {
	s.Register(JobOutboxRelay, func(ctx context.Context) (any, error) {
		return relay.RunOnce(ctx)
	})
}

// Start runs the worker and one ticker per interval until ctx is done.
func (s *Service) Start(ctx context.Context, schedule map[string]time.Duration) {
	go s.worker(ctx)
	for jobType, interval := range schedule {
		if interval <= 0 {
			continue
		}
		go s.tick(ctx, jobType, interval)
	}
}

func (s *Service) Enqueue(jobType string) error {
	fn, ok := s.lookup(jobType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
	}
	select {
	case s.queue <- job{Type: jobType, Run: fn}:
	default:
		s.log.Warn("job queue full", zap.String("job_type", jobType))
	}
	return nil
}

// RunNow runs a registered job synchronously.
func (s *Service) RunNow(ctx context.Context, jobType string) (any, error) {
	fn, ok := s.lookup(jobType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
	}
	return s.runJob(ctx, job{Type: jobType, Run: fn})
}

func (s *Service) tick(ctx context.Context, jobType string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Enqueue(jobType); err != nil {
				s.log.Warn("scheduled job skipped", zap.String("job_type", jobType), zap.Error(err))
			}
		}
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.log.Warn("job run failed", zap.String("job_type", j.Type), zap.Error(err))
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID, err := s.runs.StartRun(ctx, j.Type)
	if err != nil {
		s.log.Warn("job run insert failed", zap.String("job_type", j.Type), zap.Error(err))
	}

	started := time.Now()
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error()}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil || string(detailsJSON) == "null" {
		if marshalErr != nil {
			s.log.Warn("job details marshal failed", zap.Error(marshalErr))
		}
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.FinishRun(ctx, runID, status, detailsJSON); updErr != nil {
			s.log.Warn("job run update failed", zap.String("run_id", runID), zap.Error(updErr))
		}
	}
	s.log.Debug("job finished",
		zap.String("job_type", j.Type),
		zap.String("status", status),
		zap.Duration("took", time.Since(started)),
	)
	return details, err
}

// PgRunStore keeps job_runs in PostgreSQL.
type PgRunStore struct {
	DB querier.Querier
}

func NewRunStore(db querier.Querier) *PgRunStore {
	return &PgRunStore{DB: db}
}

func (s *PgRunStore) StartRun(ctx context.Context, jobType string) (string, error) {
	var runID string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1, $2)
    RETURNING id::text
  `, jobType, StatusRunning).Scan(&runID)
	return runID, err
}

func (s *PgRunStore) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id::text = $3
  `, status, details, runID)
	return err
}
