package leave

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"elms/internal/domain/settings"
	"elms/internal/platform/querier"
)

// Store runs leave SQL through its querier. Bound to a pgx.Tx it is the
// TxRepo of a workflow operation; bound to the pool it serves reads.
type Store struct {
	DB       querier.Querier
	settings settings.Provider
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// Repo is the PostgreSQL Repository. Settings are read through provider on
// the operation's transaction; a nil provider reads the settings row directly.
type Repo struct {
	*Store
	db querier.TxBeginner
}

func NewRepo(db querier.TxBeginner, provider settings.Provider) *Repo {
	return &Repo{Store: &Store{DB: db, settings: provider}, db: db}
}

func (r *Repo) WithTx(ctx context.Context, fn func(tx TxRepo) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{DB: tx, settings: r.settings}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

// notFound maps missing rows and malformed ids to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
