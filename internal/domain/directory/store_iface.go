package directory

import (
	"context"

	"elms/internal/domain/audit"
)

//go:generate mockgen -source=store_iface.go -destination=mock/store_mock.go -package=mock

type TxRepo interface {
	GetUser(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id string, input UpdateUserInput) (User, error)
	GetDepartment(ctx context.Context, id string) (Department, error)
	CreateDepartment(ctx context.Context, name string) (Department, error)
	SetDepartmentHead(ctx context.Context, departmentID, userID string) error
	Audit(ctx context.Context, entry audit.Entry) error
}

type Repository interface {
	ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	WithTx(ctx context.Context, fn func(tx TxRepo) error) error
}
