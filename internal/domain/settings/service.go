package settings

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"elms/internal/domain/audit"
	"elms/internal/platform/querier"
)

// Provider is the read side used by the workflow and the HTTP layer.
type Provider interface {
	// Current reads settings outside any transaction.
	Current(ctx context.Context) (Settings, error)
	// Within reads settings through q so they are consistent with the caller's transaction.
	Within(ctx context.Context, q querier.Querier) (Settings, error)
}

type Service struct {
	db    querier.TxBeginner
	log   *zap.Logger
	group singleflight.Group
}

func NewService(db querier.TxBeginner, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("settings")}
}

func (s *Service) Current(ctx context.Context) (Settings, error) {
	v, err, _ := s.group.Do("settings", func() (any, error) {
		return NewStore(s.db).Load(ctx)
	})
	if err != nil {
		s.log.Error("load settings failed", zap.Error(err))
		return Settings{}, err
	}
	return v.(Settings), nil
}

func (s *Service) Within(ctx context.Context, q querier.Querier) (Settings, error) {
	return NewStore(q).Load(ctx)
}

// Update applies a patch and records the change in the audit log atomically.
func (s *Service) Update(ctx context.Context, actorID string, patch Patch) (Settings, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Settings{}, err
	}
	defer tx.Rollback(ctx)

	store := NewStore(tx)
	before, err := store.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	after := before.Apply(patch)
	if err := after.Validate(); err != nil {
		return Settings{}, err
	}
	if err := store.Save(ctx, after, actorID); err != nil {
		return Settings{}, err
	}

	entry, err := audit.NewEntry(ctx, actorID, audit.ActionSettingsUpdated, "system_settings", "global", map[string]any{
		"before": before,
		"after":  after,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := audit.NewStore(tx).Record(ctx, entry); err != nil {
		return Settings{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Settings{}, err
	}
	s.log.Info("settings updated", zap.String("actor_id", actorID), zap.Int("approval_levels", after.ApprovalLevels))
	return after, nil
}
