package auth

import (
	"context"

	"elms/internal/domain/audit"
)

//go:generate mockgen -source=store_iface.go -destination=mock/store_mock.go -package=mock

type StoreAPI interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, id string) (User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	UpdateMFASecret(ctx context.Context, userID string, secretEnc []byte) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}

type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}
