package jobshandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/reports"
	"elms/internal/platform/jobs"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

type Runner interface {
	RunNow(ctx context.Context, jobType string) (any, error)
	Enqueue(jobType string) error
}

type RunHistory interface {
	JobRuns(ctx context.Context, actor access.ActorContext, filter reports.JobRunFilter, limit, offset int) ([]reports.JobRun, int, error)
	JobRun(ctx context.Context, actor access.ActorContext, runID string) (reports.JobRun, error)
}

type Handler struct {
	Runner  Runner
	History RunHistory
	Access  *access.Enforcer
	Log     *zap.Logger
}

func NewHandler(runner Runner, history RunHistory, enforcer *access.Enforcer, log *zap.Logger) *Handler {
	return &Handler{Runner: runner, History: history, Access: enforcer, Log: log.Named("http.jobs")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.RequireCapability(h.Access, access.CapRunJobs))
		r.Post("/{jobType}/run", h.handleRun)
		r.Get("/runs", h.handleListRuns)
		r.Get("/runs/{runID}", h.handleGetRun)
	})
}

// handleRun runs the job inline; ?async=true queues it instead.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	jobType := chi.URLParam(r, "jobType")
	requestID := api.RequestIDFrom(r)

	if r.URL.Query().Get("async") == "true" {
		if err := h.Runner.Enqueue(jobType); err != nil {
			h.fail(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: map[string]string{"status": "queued", "jobType": jobType}, RequestID: requestID})
		return
	}

	result, err := h.Runner.RunNow(r.Context(), jobType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, map[string]any{"jobType": jobType, "status": jobs.StatusCompleted, "result": result}, requestID)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	q := r.URL.Query()
	from, err := shared.OptionalDate(q.Get("from"))
	if err != nil {
		shared.FailValidation(w, api.RequestIDFrom(r), []shared.ValidationIssue{{Field: "from", Reason: "must be a date"}})
		return
	}
	to, err := shared.OptionalDate(q.Get("to"))
	if err != nil {
		shared.FailValidation(w, api.RequestIDFrom(r), []shared.ValidationIssue{{Field: "to", Reason: "must be a date"}})
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	runs, total, err := h.History.JobRuns(r.Context(), actor, reports.JobRunFilter{
		JobType:     q.Get("jobType"),
		Status:      q.Get("status"),
		StartedFrom: from,
		StartedTo:   to,
	}, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []reports.JobRun{}
	}
	api.Success(w, api.Page{Items: runs, Total: total, Limit: page.Limit, Offset: page.Offset}, api.RequestIDFrom(r))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	run, err := h.History.JobRun(r.Context(), actor, chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, run, api.RequestIDFrom(r))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := api.RequestIDFrom(r)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		api.Fail(w, http.StatusNotFound, "unknown_job", err.Error(), requestID)
	case errors.Is(err, reports.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", requestID)
	case errors.Is(err, reports.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	default:
		h.Log.Error("job request failed", zap.String("request_id", requestID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "job_failed", err.Error(), requestID)
	}
}
