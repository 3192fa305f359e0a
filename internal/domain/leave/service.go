package leave

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/audit"
)

//go:generate mockgen -source=service.go -destination=mock/service_mock.go -package=mock

// Mailer sends workflow emails. Failures never undo a committed transition.
type Mailer interface {
	SendApplicationSubmitted(ctx context.Context, approverEmail, applicantName, leaveTypeName string, start, end time.Time, applicationID string) error
	SendStatusChanged(ctx context.Context, applicantEmail, applicantName, newStatus, leaveTypeName string, start, end time.Time, reasonOrComments string) error
}

type AttachmentStore interface {
	Open(ctx context.Context, ref string) ([]byte, error)
	Store(ctx context.Context, name string, data []byte, allowedExt []string, maxSize int64) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Recorder counts committed workflow transitions.
type Recorder interface {
	RecordLeave(event string)
}

type Service struct {
	repo        Repository
	access      *access.Enforcer
	mailer      Mailer
	attachments AttachmentStore
	recorder    Recorder
	log         *zap.Logger
	topic       string
	now         func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithTopic sets the outbox topic leave events are published to.
func WithTopic(topic string) Option {
	return func(s *Service) { s.topic = topic }
}

func NewService(repo Repository, enforcer *access.Enforcer, mailer Mailer, attachments AttachmentStore, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		access:      enforcer,
		mailer:      mailer,
		attachments: attachments,
		recorder:    noopRecorder{},
		log:         log.Named("leave"),
		topic:       "elms.leave",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopRecorder struct{}

func (noopRecorder) RecordLeave(string) {}

func (s *Service) today() time.Time {
	return dateOnly(s.now())
}

func (s *Service) ListTypes(ctx context.Context, actor access.ActorContext) ([]LeaveType, error) {
	includeInactive := s.access.CanAny(actor.Role, access.CapManageLeaveTypes, access.CapOverride)
	types, err := s.repo.ListTypes(ctx, includeInactive)
	if err != nil {
		return nil, storageErr("list leave types", err)
	}
	if types == nil {
		types = []LeaveType{}
	}
	return types, nil
}

func validateLeaveTypeInput(input LeaveTypeInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if input.MaxDays.IsNegative() {
		return &ValidationError{Field: "maxDays", Reason: "must not be negative"}
	}
	if !IsHalfDayMultiple(input.MaxDays) {
		return &ValidationError{Field: "maxDays", Reason: "must be a multiple of 0.5"}
	}
	for _, role := range input.ApplicableTo {
		if !access.ValidRole(role) {
			return &ValidationError{Field: "applicableTo", Reason: "unknown role " + role}
		}
	}
	return nil
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := map[string]bool{}
	for _, role := range roles {
		role = access.NormalizeRole(role)
		if !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}
	return out
}

func (s *Service) CreateType(ctx context.Context, actor access.ActorContext, input LeaveTypeInput) (LeaveType, error) {
	if !s.access.CanAny(actor.Role, access.CapManageLeaveTypes, access.CapOverride) {
		return LeaveType{}, ErrForbidden
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateLeaveTypeInput(input); err != nil {
		return LeaveType{}, err
	}
	input.ApplicableTo = normalizeRoles(input.ApplicableTo)

	var created LeaveType
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		lt, err := tx.CreateLeaveType(ctx, input)
		if err != nil {
			return storageErr("create leave type", err)
		}
		created = lt
		entry, err := audit.NewEntry(ctx, actor.UserID, audit.ActionLeaveTypeCreated, entityLeaveType, lt.ID, lt)
		if err != nil {
			return err
		}
		return storageErr("audit", tx.Audit(ctx, entry))
	})
	if err != nil {
		return LeaveType{}, err
	}
	return created, nil
}

func (s *Service) UpdateType(ctx context.Context, actor access.ActorContext, id string, input LeaveTypeInput) (LeaveType, error) {
	if !s.access.CanAny(actor.Role, access.CapManageLeaveTypes, access.CapOverride) {
		return LeaveType{}, ErrForbidden
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateLeaveTypeInput(input); err != nil {
		return LeaveType{}, err
	}
	input.ApplicableTo = normalizeRoles(input.ApplicableTo)

	var updated LeaveType
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		before, err := tx.LeaveType(ctx, id)
		if err != nil {
			return storageErr("load leave type", err)
		}
		lt, err := tx.UpdateLeaveType(ctx, id, input)
		if err != nil {
			return storageErr("update leave type", err)
		}
		updated = lt
		entry, err := audit.NewEntry(ctx, actor.UserID, audit.ActionLeaveTypeUpdated, entityLeaveType, lt.ID, map[string]any{
			"before": before,
			"after":  lt,
		})
		if err != nil {
			return err
		}
		return storageErr("audit", tx.Audit(ctx, entry))
	})
	if err != nil {
		return LeaveType{}, err
	}
	return updated, nil
}

// Balances returns the actor's balance for every active type that applies to
// their role, synthesizing missing rows.
func (s *Service) Balances(ctx context.Context, actor access.ActorContext, year int) ([]Balance, error) {
	if year <= 0 {
		year = s.today().Year()
	}
	out := []Balance{}
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		types, err := tx.ListTypes(ctx, false)
		if err != nil {
			return storageErr("list leave types", err)
		}
		for _, lt := range types {
			if !lt.AppliesTo(actor.Role) {
				continue
			}
			b, err := GetAvailable(ctx, tx, actor.UserID, lt, year)
			if err != nil {
				return err
			}
			b.LeaveTypeName = lt.Name
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListApplications returns the actor's own applications unless scopeAll is set
// and the actor may see reports. Department heads are limited to their department.
func (s *Service) ListApplications(ctx context.Context, actor access.ActorContext, filter ApplicationFilter, scopeAll bool) (ApplicationList, error) {
	switch {
	case !scopeAll || !s.access.CanAny(actor.Role, access.CapViewReports, access.CapOverride):
		filter.UserID = actor.UserID
	case access.NormalizeRole(actor.Role) == access.RoleDepartmentHead && !s.access.Can(actor.Role, access.CapOverride):
		if actor.DepartmentID == "" {
			filter.UserID = actor.UserID
		} else {
			filter.DepartmentID = actor.DepartmentID
		}
	}
	result, err := s.repo.ListApplications(ctx, filter)
	if err != nil {
		return ApplicationList{}, storageErr("list applications", err)
	}
	return result, nil
}

// GetApplication returns an application with its approval chain.
func (s *Service) GetApplication(ctx context.Context, actor access.ActorContext, id string) (Application, error) {
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, storageErr("get application", err)
	}
	approvals, err := s.repo.ListApprovals(ctx, id)
	if err != nil {
		return Application{}, storageErr("list approvals", err)
	}
	app.Approvals = approvals

	if app.UserID == actor.UserID || s.access.CanAny(actor.Role, access.CapOverride, access.CapViewReports) {
		return app, nil
	}
	applicant, err := s.repo.Person(ctx, app.UserID)
	if err != nil {
		return Application{}, storageErr("load applicant", err)
	}
	for _, a := range approvals {
		if a.ApproverID == actor.UserID || a.ActedBy == actor.UserID {
			return app, nil
		}
		if a.Status == StatusPending && s.canActOnLevel(actor, a, applicant.DepartmentID) == nil {
			return app, nil
		}
	}
	return Application{}, ErrForbidden
}

// Attachment returns the supporting document of an application to anyone
// allowed to view the application.
func (s *Service) Attachment(ctx context.Context, actor access.ActorContext, id string) (Upload, error) {
	app, err := s.GetApplication(ctx, actor, id)
	if err != nil {
		return Upload{}, err
	}
	if app.Attachment == "" || s.attachments == nil {
		return Upload{}, ErrNotFound
	}
	data, err := s.attachments.Open(ctx, app.Attachment)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("attachment missing from storage", zap.String("application_id", app.ID), zap.String("ref", app.Attachment))
		return Upload{}, ErrNotFound
	}
	if err != nil {
		return Upload{}, &StorageError{Op: "open attachment", Err: err}
	}
	return Upload{FileName: path.Base(app.Attachment), Data: data}, nil
}

// PendingApprovals lists approval rows the actor could act on now.
func (s *Service) PendingApprovals(ctx context.Context, actor access.ActorContext, limit, offset int) ([]PendingApproval, error) {
	query := PendingQuery{
		UserID:       actor.UserID,
		DepartmentID: actor.DepartmentID,
		Override:     s.access.Can(actor.Role, access.CapOverride),
		Limit:        limit,
		Offset:       offset,
	}
	for level := 1; level <= access.MaxApprovalLevels; level++ {
		capability, _ := access.LevelCapability(level)
		if s.access.Can(actor.Role, capability) {
			query.Levels = append(query.Levels, level)
		}
	}
	if len(query.Levels) == 0 && !query.Override {
		return nil, ErrForbidden
	}
	items, err := s.repo.PendingApprovals(ctx, query)
	if err != nil {
		return nil, storageErr("pending approvals", err)
	}
	return items, nil
}

// canActOnLevel applies the capability table to one approval row.
// applicantDepartment may be empty when it is not known.
func (s *Service) canActOnLevel(actor access.ActorContext, row Approval, applicantDepartment string) error {
	if s.access.Can(actor.Role, access.CapOverride) {
		return nil
	}
	capability, ok := access.LevelCapability(row.Level)
	if !ok || !s.access.Can(actor.Role, capability) {
		return invalidTransition(ErrNotAuthorized)
	}
	if row.Level == 1 && row.ApproverID != actor.UserID {
		if actor.DepartmentID == "" || actor.DepartmentID != applicantDepartment {
			return invalidTransition(ErrNotAuthorized)
		}
	}
	return nil
}

func (s *Service) warn(msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	s.log.Warn(msg, append(fields, zap.Error(err))...)
}

func daysString(d decimal.Decimal) string {
	return d.StringFixed(1)
}
