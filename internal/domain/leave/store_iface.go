package leave

import (
	"context"

	"github.com/shopspring/decimal"

	"elms/internal/domain/audit"
	"elms/internal/domain/notifications"
	"elms/internal/domain/settings"
	"elms/internal/platform/events"
)

// LedgerRepo is the balance side of a transaction-bound repository.
type LedgerRepo interface {
	// EnsureBalance inserts the row for key unless it already exists.
	EnsureBalance(ctx context.Context, key BalanceKey, total decimal.Decimal) error
	// LockBalance reads the row for key and holds it until the transaction ends.
	LockBalance(ctx context.Context, key BalanceKey) (Balance, error)
	UpdateBalance(ctx context.Context, balance Balance) error
	// AppendBalanceEntry reports false when an entry of the same kind already exists for the application.
	AppendBalanceEntry(ctx context.Context, entry BalanceEntry) (bool, error)
}

// TxRepo is every read and write a workflow operation performs. All calls
// share one transaction; the notification, audit and outbox writes commit or
// roll back together with the state change.
type TxRepo interface {
	LedgerRepo

	Settings(ctx context.Context) (settings.Settings, error)
	ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error)
	LeaveType(ctx context.Context, id string) (LeaveType, error)
	CreateLeaveType(ctx context.Context, input LeaveTypeInput) (LeaveType, error)
	UpdateLeaveType(ctx context.Context, id string, input LeaveTypeInput) (LeaveType, error)
	Person(ctx context.Context, id string) (Person, error)
	DepartmentHead(ctx context.Context, departmentID string) (string, error)
	// FirstActiveWithRoles returns "" when nobody holds any of roles.
	FirstActiveWithRoles(ctx context.Context, roles []string, excludeUserID string) (string, error)

	CreateApplication(ctx context.Context, app Application) (Application, error)
	LockApplication(ctx context.Context, id string) (Application, error)
	// TransitionApplication moves status from -> to and reports false when the row was not in from.
	TransitionApplication(ctx context.Context, id, from, to string) (bool, error)
	SetCurrentLevel(ctx context.Context, id string, level int) error
	ListApprovals(ctx context.Context, applicationID string) ([]Approval, error)
	CreateApproval(ctx context.Context, approval Approval) (Approval, error)
	// ActOnApproval decides a pending row and reports false when it was no longer pending.
	ActOnApproval(ctx context.Context, id, status, actedBy, comments string) (bool, error)

	Notify(ctx context.Context, n notifications.Notification) error
	Audit(ctx context.Context, entry audit.Entry) error
	Publish(ctx context.Context, event events.OutboxEvent) error
}

// Reader serves queries outside of a workflow transaction.
type Reader interface {
	ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error)
	GetApplication(ctx context.Context, id string) (Application, error)
	ListApprovals(ctx context.Context, applicationID string) ([]Approval, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) (ApplicationList, error)
	PendingApprovals(ctx context.Context, query PendingQuery) ([]PendingApproval, error)
	Person(ctx context.Context, id string) (Person, error)
}

type Repository interface {
	Reader
	// WithTx runs fn in one transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(tx TxRepo) error) error
}
