package db

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/auth"
	"elms/internal/domain/settings"
	"elms/internal/platform/config"
	"elms/internal/platform/querier"
)

type seedLeaveType struct {
	Name               string
	Description        string
	MaxDays            string
	RequiresAttachment bool
}

var defaultLeaveTypes = []seedLeaveType{
	{Name: "Annual Leave", Description: "Paid yearly vacation", MaxDays: "20"},
	{Name: "Sick Leave", Description: "Illness with a medical certificate", MaxDays: "10", RequiresAttachment: true},
	{Name: "Casual Leave", Description: "Short personal absence", MaxDays: "5"},
}

// Seed creates the first admin account, default leave types and default
// settings. It is safe to run on every start.
func Seed(ctx context.Context, db querier.Querier, cfg config.Config, log *zap.Logger) error {
	created, err := ensureAdminUser(ctx, db, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info("seeded admin user", zap.String("email", cfg.SeedAdminEmail))
	}

	if err := ensureLeaveTypes(ctx, db); err != nil {
		return err
	}
	return settings.NewStore(db).SeedDefaults(ctx)
}

func ensureAdminUser(ctx context.Context, db querier.Querier, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return false, nil
	}

	var exists bool
	if err := db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = $1)", email).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	_, err = db.Exec(ctx, `
    INSERT INTO users (email, full_name, password_hash, role)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (email) DO NOTHING
  `, email, "Administrator", hash, access.RoleAdmin)
	return err == nil, err
}

func ensureLeaveTypes(ctx context.Context, db querier.Querier) error {
	for _, lt := range defaultLeaveTypes {
		if _, err := db.Exec(ctx, `
      INSERT INTO leave_types (name, description, max_days, requires_attachment)
      VALUES ($1, $2, $3::numeric, $4)
      ON CONFLICT (name) DO NOTHING
    `, lt.Name, lt.Description, lt.MaxDays, lt.RequiresAttachment); err != nil {
			return err
		}
	}
	return nil
}
