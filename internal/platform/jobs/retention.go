package jobs

import (
	"context"
	"fmt"
	"time"

	"elms/internal/platform/querier"
)

const JobRetention = "retention"

// Data categories the retention job prunes. Leave records and the audit log
// are never pruned.
const (
	CategoryNotifications = "notifications"
	CategoryOutbox        = "outbox"
	CategoryJobRuns       = "job_runs"
)

// RetentionPolicy is how long each category is kept. Zero keeps forever.
type RetentionPolicy map[string]time.Duration

func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{
		CategoryNotifications: 180 * 24 * time.Hour,
		CategoryOutbox:        30 * 24 * time.Hour,
		CategoryJobRuns:       90 * 24 * time.Hour,
	}
}

// ApplyRetention deletes rows of category older than cutoff. Unread
// notifications and undelivered events are kept.
func ApplyRetention(ctx context.Context, db querier.Querier, category string, cutoff time.Time) (int64, error) {
	switch category {
	case CategoryNotifications:
		tag, err := db.Exec(ctx, `
      DELETE FROM notifications
      WHERE is_read AND created_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryOutbox:
		tag, err := db.Exec(ctx, `
      DELETE FROM outbox_events
      WHERE status = 'sent' AND created_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryJobRuns:
		tag, err := db.Exec(ctx, `
      DELETE FROM job_runs
      WHERE completed_at IS NOT NULL AND started_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	default:
		return 0, fmt.Errorf("unknown retention category %q", category)
	}
}

// RegisterRetention wires the retention job. The result maps each category
// to the number of rows removed.
func (s *Service) RegisterRetention(db querier.Querier, policy RetentionPolicy, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.Register(JobRetention, func(ctx context.Context) (any, error) {
		removed := map[string]int64{}
		for category, keep := range policy {
			if keep <= 0 {
				continue
			}
			n, err := ApplyRetention(ctx, db, category, now().Add(-keep))
			if err != nil {
				return removed, fmt.Errorf("%s: %w", category, err)
			}
			removed[category] = n
		}
		return removed, nil
	})
}
