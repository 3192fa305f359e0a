package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"elms/internal/domain/access"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidFormat = errors.New("unsupported export format")
)

// StoreAPI is the read side the reports service needs.
type StoreAPI interface {
	LeaveRows(ctx context.Context, filter LeaveFilter) ([]LeaveRow, error)
	CountByStatus(ctx context.Context, filter LeaveFilter) (map[string]int, error)
	BalanceSummary(ctx context.Context, year int, departmentID string) ([]BalanceRow, error)
	ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error)
	JobRunByID(ctx context.Context, runID string) (JobRun, error)
}

type Service struct {
	store  StoreAPI
	access *access.Enforcer
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store StoreAPI, enforcer *access.Enforcer, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: store, access: enforcer, log: log.Named("reports"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scope checks view-reports and pins department heads to their own department.
func (s *Service) scope(actor access.ActorContext, departmentID string) (string, error) {
	if !actor.Valid() || !s.access.Can(actor.Role, access.CapViewReports) {
		return "", ErrForbidden
	}
	if s.departmentScoped(actor) {
		if actor.DepartmentID == "" {
			return "", ErrForbidden
		}
		return actor.DepartmentID, nil
	}
	return departmentID, nil
}

func (s *Service) departmentScoped(actor access.ActorContext) bool {
	if !s.access.Can(actor.Role, access.CapApproveLevel1) {
		return false
	}
	return !s.access.CanAny(actor.Role,
		access.CapApproveLevel2, access.CapApproveLevel3, access.CapOverride, access.CapManageDirectory)
}

func (s *Service) Leave(ctx context.Context, actor access.ActorContext, filter LeaveFilter) (LeaveReport, error) {
	dept, err := s.scope(actor, filter.DepartmentID)
	if err != nil {
		return LeaveReport{}, err
	}
	filter.DepartmentID = dept

	rows, err := s.store.LeaveRows(ctx, filter)
	if err != nil {
		return LeaveReport{}, err
	}
	counts, err := s.store.CountByStatus(ctx, filter)
	if err != nil {
		return LeaveReport{}, err
	}

	total := 0
	for status, n := range counts {
		if filter.Status == "" || status == filter.Status {
			total += n
		}
	}
	return LeaveReport{Items: rows, Total: total, ByStatus: counts}, nil
}

// Export renders every row matching filter; paging is ignored.
func (s *Service) Export(ctx context.Context, actor access.ActorContext, filter LeaveFilter, format string) (Export, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatXLSX && format != FormatPDF {
		return Export{}, ErrInvalidFormat
	}
	dept, err := s.scope(actor, filter.DepartmentID)
	if err != nil {
		return Export{}, err
	}
	filter.DepartmentID = dept
	filter.Limit, filter.Offset = 0, 0

	rows, err := s.store.LeaveRows(ctx, filter)
	if err != nil {
		return Export{}, err
	}

	now := s.now()
	stamp := now.UTC().Format("20060102")
	switch format {
	case FormatXLSX:
		data, err := RenderXLSX(rows)
		if err != nil {
			return Export{}, err
		}
		return Export{
			FileName:    "leave-report-" + stamp + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		data, err := RenderPDF(rows, "Leave report", now)
		if err != nil {
			return Export{}, err
		}
		return Export{FileName: "leave-report-" + stamp + ".pdf", ContentType: "application/pdf", Data: data}, nil
	}
}

// Calendar exports approved leave as an iCalendar feed.
func (s *Service) Calendar(ctx context.Context, actor access.ActorContext, filter LeaveFilter) (Export, error) {
	dept, err := s.scope(actor, filter.DepartmentID)
	if err != nil {
		return Export{}, err
	}
	filter.DepartmentID = dept
	filter.Status = "approved"
	filter.Limit, filter.Offset = 0, 0

	rows, err := s.store.LeaveRows(ctx, filter)
	if err != nil {
		return Export{}, err
	}
	return Export{
		FileName:    "leave-calendar.ics",
		ContentType: "text/calendar; charset=utf-8",
		Data:        []byte(RenderICS(rows, s.now())),
	}, nil
}

func (s *Service) Balances(ctx context.Context, actor access.ActorContext, year int, departmentID string) ([]BalanceRow, error) {
	dept, err := s.scope(actor, departmentID)
	if err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	return s.store.BalanceSummary(ctx, year, dept)
}

func (s *Service) JobRuns(ctx context.Context, actor access.ActorContext, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	if !s.access.Can(actor.Role, access.CapRunJobs) {
		return nil, 0, ErrForbidden
	}
	runs, err := s.store.ListJobRuns(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountJobRuns(ctx, filter)
	if err != nil {
		s.log.Warn("count job runs failed", zap.Error(err))
		total = len(runs)
	}
	return runs, total, nil
}

func (s *Service) JobRun(ctx context.Context, actor access.ActorContext, runID string) (JobRun, error) {
	if !s.access.Can(actor.Role, access.CapRunJobs) {
		return JobRun{}, ErrForbidden
	}
	return s.store.JobRunByID(ctx, runID)
}
