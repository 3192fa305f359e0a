package leavehandler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/leave"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

// Service is the leave workflow as the HTTP layer sees it.
type Service interface {
	ListTypes(ctx context.Context, actor access.ActorContext) ([]leave.LeaveType, error)
	CreateType(ctx context.Context, actor access.ActorContext, input leave.LeaveTypeInput) (leave.LeaveType, error)
	UpdateType(ctx context.Context, actor access.ActorContext, id string, input leave.LeaveTypeInput) (leave.LeaveType, error)
	Balances(ctx context.Context, actor access.ActorContext, year int) ([]leave.Balance, error)
	Submit(ctx context.Context, actor access.ActorContext, in leave.SubmitInput) (leave.Application, error)
	ListApplications(ctx context.Context, actor access.ActorContext, filter leave.ApplicationFilter, scopeAll bool) (leave.ApplicationList, error)
	GetApplication(ctx context.Context, actor access.ActorContext, id string) (leave.Application, error)
	Attachment(ctx context.Context, actor access.ActorContext, id string) (leave.Upload, error)
	PendingApprovals(ctx context.Context, actor access.ActorContext, limit, offset int) ([]leave.PendingApproval, error)
	Approve(ctx context.Context, actor access.ActorContext, id string, level int, comments string) (leave.Application, error)
	Reject(ctx context.Context, actor access.ActorContext, id string, level int, comments string) (leave.Application, error)
	Cancel(ctx context.Context, actor access.ActorContext, id, reason string) (leave.Application, error)
}

type Handler struct {
	Service  Service
	Access   *access.Enforcer
	Settings settings.Provider
	Log      *zap.Logger
}

const maxMultipartMemory = 4 << 20

func NewHandler(service Service, enforcer *access.Enforcer, provider settings.Provider, log *zap.Logger) *Handler {
	return &Handler{Service: service, Access: enforcer, Settings: provider, Log: log.Named("http.leave")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	approvers := middleware.RequireCapability(h.Access,
		access.CapApproveLevel1, access.CapApproveLevel2, access.CapApproveLevel3, access.CapOverride)

	r.Route("/leave", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/types", h.handleListTypes)
		r.With(middleware.RequireCapability(h.Access, access.CapManageLeaveTypes, access.CapOverride)).Post("/types", h.handleCreateType)
		r.With(middleware.RequireCapability(h.Access, access.CapManageLeaveTypes, access.CapOverride)).Put("/types/{typeID}", h.handleUpdateType)
		r.Get("/balances", h.handleBalances)
		r.With(middleware.RequireCapability(h.Access, access.CapSubmit)).Post("/applications", h.handleSubmit)
		r.Get("/applications", h.handleListApplications)
		r.Get("/applications/{applicationID}", h.handleGetApplication)
		r.Get("/applications/{applicationID}/attachment", h.handleAttachment)
		r.With(approvers).Post("/applications/{applicationID}/approve", h.handleApprove)
		r.With(approvers).Post("/applications/{applicationID}/reject", h.handleReject)
		r.Post("/applications/{applicationID}/cancel", h.handleCancel)
		r.With(approvers).Get("/approvals/pending", h.handlePending)
	})
}

type leaveTypeRequest struct {
	Name               string          `json:"name" validate:"required,max=100"`
	Description        string          `json:"description" validate:"max=500"`
	MaxDays            decimal.Decimal `json:"maxDays"`
	RequiresAttachment bool            `json:"requiresAttachment"`
	ApplicableTo       []string        `json:"applicableTo" validate:"omitempty,dive,required"`
	Active             *bool           `json:"active"`
}

func (p leaveTypeRequest) input() leave.LeaveTypeInput {
	return leave.LeaveTypeInput{
		Name:               p.Name,
		Description:        p.Description,
		MaxDays:            p.MaxDays,
		RequiresAttachment: p.RequiresAttachment,
		ApplicableTo:       p.ApplicableTo,
		Active:             p.Active,
	}
}

type submitRequest struct {
	LeaveTypeID string           `json:"leaveTypeId" validate:"required"`
	StartDate   string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	StartHalf   bool             `json:"startHalf"`
	EndHalf     bool             `json:"endHalf"`
	Days        *decimal.Decimal `json:"days"`
	Reason      string           `json:"reason" validate:"max=2000"`
}

type decisionRequest struct {
	Level    int    `json:"level" validate:"required,min=1,max=3"`
	Comments string `json:"comments" validate:"max=2000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	types, err := h.Service.ListTypes(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, types, api.RequestIDFrom(r))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload leaveTypeRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	created, err := h.Service.CreateType(r.Context(), actor, payload.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, created, api.RequestIDFrom(r))
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload leaveTypeRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	updated, err := h.Service.UpdateType(r.Context(), actor, chi.URLParam(r, "typeID"), payload.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, updated, api.RequestIDFrom(r))
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	year := shared.ParseYear(r.URL.Query().Get("year"), 0)
	balances, err := h.Service.Balances(r.Context(), actor, year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	type balanceView struct {
		leave.Balance
		Available decimal.Decimal `json:"available"`
	}
	out := make([]balanceView, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceView{Balance: b, Available: b.Available()})
	}
	api.Success(w, out, api.RequestIDFrom(r))
}

// handleSubmit accepts JSON, or multipart/form-data with the same field
// names plus an "attachment" file part.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	requestID := api.RequestIDFrom(r)

	var (
		payload submitRequest
		upload  *leave.Upload
	)
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		var ok bool
		payload, upload, ok = h.parseMultipart(w, r)
		if !ok {
			return
		}
		if !shared.ValidateStruct(w, requestID, &payload) {
			return
		}
	} else if !shared.DecodeJSON(w, r, &payload) {
		return
	}

	start, _ := shared.ParseDate(payload.StartDate)
	end, _ := shared.ParseDate(payload.EndDate)
	input := leave.SubmitInput{
		LeaveTypeID: payload.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		StartHalf:   payload.StartHalf,
		EndHalf:     payload.EndHalf,
		Days:        payload.Days,
		Reason:      payload.Reason,
		Attachment:  upload,
	}

	app, err := h.Service.Submit(r.Context(), actor, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, app, requestID)
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (submitRequest, *leave.Upload, bool) {
	requestID := api.RequestIDFrom(r)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		} else {
			api.Fail(w, http.StatusBadRequest, "invalid_form", "invalid multipart payload", requestID)
		}
		return submitRequest{}, nil, false
	}

	payload := submitRequest{
		LeaveTypeID: r.FormValue("leaveTypeId"),
		StartDate:   r.FormValue("startDate"),
		EndDate:     r.FormValue("endDate"),
		StartHalf:   formBool(r.FormValue("startHalf")),
		EndHalf:     formBool(r.FormValue("endHalf")),
		Reason:      r.FormValue("reason"),
	}
	if raw := strings.TrimSpace(r.FormValue("days")); raw != "" {
		days, err := decimal.NewFromString(raw)
		if err != nil {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "days", Reason: "Days must be a number"}})
			return submitRequest{}, nil, false
		}
		payload.Days = &days
	}

	file, header, err := r.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) {
		return payload, nil, true
	}
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_form", "invalid attachment part", requestID)
		return submitRequest{}, nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_form", "attachment could not be read", requestID)
		return submitRequest{}, nil, false
	}
	return payload, &leave.Upload{FileName: filepath.Base(header.Filename), Data: data}, true
}

func formBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	page := shared.PageFromSettings(r.Context(), r, h.Settings)
	q := r.URL.Query()
	filter := leave.ApplicationFilter{
		Status:       q.Get("status"),
		LeaveTypeID:  q.Get("leaveTypeId"),
		DepartmentID: q.Get("departmentId"),
		UserID:       q.Get("userId"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	result, err := h.Service.ListApplications(r.Context(), actor, filter, q.Get("scope") == "all")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, api.Page{Items: result.Items, Total: result.Total, Limit: page.Limit, Offset: page.Offset}, api.RequestIDFrom(r))
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	app, err := h.Service.GetApplication(r.Context(), actor, chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, app, api.RequestIDFrom(r))
}

func (h *Handler) handleAttachment(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	file, err := h.Service.Attachment(r.Context(), actor, chi.URLParam(r, "applicationID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(file.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	api.File(w, contentType, file.FileName, file.Data)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, h.Service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, h.Service.Reject)
}

type decideFunc func(ctx context.Context, actor access.ActorContext, id string, level int, comments string) (leave.Application, error)

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, decide decideFunc) {
	actor, _ := middleware.GetActor(r.Context())
	var payload decisionRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	app, err := decide(r.Context(), actor, chi.URLParam(r, "applicationID"), payload.Level, payload.Comments)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, app, api.RequestIDFrom(r))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload cancelRequest
	if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload) {
		return
	}
	app, err := h.Service.Cancel(r.Context(), actor, chi.URLParam(r, "applicationID"), payload.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, app, api.RequestIDFrom(r))
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	page := shared.PageFromSettings(r.Context(), r, h.Settings)
	items, err := h.Service.PendingApprovals(r.Context(), actor, page.Limit, page.Offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []leave.PendingApproval{}
	}
	api.Success(w, items, api.RequestIDFrom(r))
}

// fail maps workflow errors to response envelopes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := api.RequestIDFrom(r)
	var (
		validation   *leave.ValidationError
		insufficient *leave.InsufficientBalanceError
		transition   *leave.InvalidTransitionError
		attachment   *leave.AttachmentError
		storage      *leave.StorageError
	)
	switch {
	case errors.As(err, &validation):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: validation.Field, Reason: validation.Reason}})
	case errors.As(err, &insufficient):
		api.FailWithDetails(w, http.StatusConflict, "insufficient_balance", err.Error(), map[string]string{
			"available": insufficient.Available.String(),
			"requested": insufficient.Requested.String(),
		}, requestID)
	case errors.As(err, &transition):
		status := http.StatusConflict
		if errors.Is(err, leave.ErrNotAuthorized) {
			status = http.StatusForbidden
		}
		api.Fail(w, status, "invalid_transition", transition.Reason.Error(), requestID)
	case errors.As(err, &attachment):
		if attachment.Err != nil {
			h.Log.Warn("attachment rejected", zap.String("request_id", requestID), zap.Error(attachment.Err))
		}
		api.Fail(w, http.StatusBadRequest, "attachment_error", attachment.Reason, requestID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.As(err, &storage):
		h.Log.Error("leave storage failure", zap.String("op", storage.Op), zap.String("request_id", requestID), zap.Error(storage.Err))
		api.Fail(w, http.StatusInternalServerError, "storage_error", "storage failure", requestID)
	default:
		h.Log.Error("leave request failed", zap.String("request_id", requestID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
