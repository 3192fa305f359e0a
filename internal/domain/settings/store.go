package settings

import (
	"context"

	"elms/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// Load reads every stored key and overlays it on the defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	rows, err := s.DB.Query(ctx, "SELECT key, value FROM system_settings")
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}
	return decode(values), nil
}

func (s *Store) Save(ctx context.Context, cfg Settings, updatedBy string) error {
	for key, value := range cfg.encode() {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO system_settings (key, value, updated_by, updated_at)
      VALUES ($1,$2,$3,now())
      ON CONFLICT (key) DO UPDATE
        SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()
    `, key, value, nullIfEmpty(updatedBy)); err != nil {
			return err
		}
	}
	return nil
}

// SeedDefaults inserts missing keys without touching existing values.
func (s *Store) SeedDefaults(ctx context.Context) error {
	for key, value := range Defaults().encode() {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO system_settings (key, value) VALUES ($1,$2)
      ON CONFLICT (key) DO NOTHING
    `, key, value); err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
