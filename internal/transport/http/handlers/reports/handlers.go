package reportshandler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/reports"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

type Service interface {
	Leave(ctx context.Context, actor access.ActorContext, filter reports.LeaveFilter) (reports.LeaveReport, error)
	Export(ctx context.Context, actor access.ActorContext, filter reports.LeaveFilter, format string) (reports.Export, error)
	Calendar(ctx context.Context, actor access.ActorContext, filter reports.LeaveFilter) (reports.Export, error)
	Balances(ctx context.Context, actor access.ActorContext, year int, departmentID string) ([]reports.BalanceRow, error)
}

type Handler struct {
	Service  Service
	Access   *access.Enforcer
	Settings settings.Provider
	Log      *zap.Logger
}

func NewHandler(service Service, enforcer *access.Enforcer, provider settings.Provider, log *zap.Logger) *Handler {
	return &Handler{Service: service, Access: enforcer, Settings: provider, Log: log.Named("http.reports")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequireCapability(h.Access, access.CapViewReports))
		r.Get("/leave", h.handleLeave)
		r.Get("/leave/export", h.handleExport)
		r.Get("/leave/calendar.ics", h.handleCalendar)
		r.Get("/balances", h.handleBalances)
	})
}

func (h *Handler) parseFilter(w http.ResponseWriter, r *http.Request) (reports.LeaveFilter, bool) {
	q := r.URL.Query()
	filter := reports.LeaveFilter{
		DepartmentID: q.Get("departmentId"),
		Status:       q.Get("status"),
		LeaveTypeID:  q.Get("leaveTypeId"),
	}
	var issues []shared.ValidationIssue
	from, err := shared.OptionalDate(q.Get("from"))
	if err != nil {
		issues = append(issues, shared.ValidationIssue{Field: "from", Reason: "must be a date"})
	}
	to, err := shared.OptionalDate(q.Get("to"))
	if err != nil {
		issues = append(issues, shared.ValidationIssue{Field: "to", Reason: "must be a date"})
	}
	if from != nil && to != nil && to.Before(*from) {
		issues = append(issues, shared.ValidationIssue{Field: "to", Reason: "must not be before from"})
	}
	if len(issues) > 0 {
		shared.FailValidation(w, api.RequestIDFrom(r), issues)
		return reports.LeaveFilter{}, false
	}
	filter.From, filter.To = from, to
	return filter, true
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	page := shared.PageFromSettings(r.Context(), r, h.Settings)
	filter.Limit, filter.Offset = page.Limit, page.Offset

	report, err := h.Service.Leave(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, report, api.RequestIDFrom(r))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = reports.FormatXLSX
	}
	out, err := h.Service.Export(r.Context(), actor, filter, format)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.File(w, out.ContentType, out.FileName, out.Data)
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	out, err := h.Service.Calendar(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.File(w, out.ContentType, out.FileName, out.Data)
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	q := r.URL.Query()
	rows, err := h.Service.Balances(r.Context(), actor, shared.ParseYear(q.Get("year"), 0), q.Get("departmentId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []reports.BalanceRow{}
	}
	api.Success(w, rows, api.RequestIDFrom(r))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := api.RequestIDFrom(r)
	switch {
	case errors.Is(err, reports.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, reports.ErrInvalidFormat):
		api.Fail(w, http.StatusBadRequest, "invalid_format", "format must be xlsx or pdf", requestID)
	default:
		h.Log.Error("report failed", zap.String("request_id", requestID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", requestID)
	}
}
