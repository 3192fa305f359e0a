package directoryhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/directory"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

type Service interface {
	ListUsers(ctx context.Context, actor access.ActorContext, filter directory.UserFilter) ([]directory.User, int, error)
	CreateUser(ctx context.Context, actor access.ActorContext, input directory.CreateUserInput) (directory.User, error)
	UpdateUser(ctx context.Context, actor access.ActorContext, id string, input directory.UpdateUserInput) (directory.User, error)
	ListDepartments(ctx context.Context, actor access.ActorContext) ([]directory.Department, error)
	CreateDepartment(ctx context.Context, actor access.ActorContext, name string) (directory.Department, error)
	SetDepartmentHead(ctx context.Context, actor access.ActorContext, departmentID, userID string) (directory.Department, error)
}

type Handler struct {
	Service  Service
	Access   *access.Enforcer
	Settings settings.Provider
	Log      *zap.Logger
}

func NewHandler(service Service, enforcer *access.Enforcer, provider settings.Provider, log *zap.Logger) *Handler {
	return &Handler{Service: service, Access: enforcer, Settings: provider, Log: log.Named("http.directory")}
}

type createUserRequest struct {
	Email        string `json:"email" validate:"required,email,max=255"`
	FullName     string `json:"fullName" validate:"required,max=200"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	Role         string `json:"role" validate:"required"`
	DepartmentID string `json:"departmentId"`
}

type updateUserRequest struct {
	FullName     *string `json:"fullName" validate:"omitempty,max=200"`
	Role         *string `json:"role"`
	DepartmentID *string `json:"departmentId"`
	Status       *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

type departmentRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type departmentHeadRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/directory", func(r chi.Router) {
		r.With(middleware.RequireAuth).Get("/departments", h.handleListDepartments)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(h.Access, access.CapManageDirectory, access.CapOverride))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Patch("/users/{userID}", h.handleUpdateUser)
			r.Post("/departments", h.handleCreateDepartment)
			r.Put("/departments/{departmentID}/head", h.handleSetHead)
		})
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	page := shared.PageFromSettings(r.Context(), r, h.Settings)
	q := r.URL.Query()
	users, total, err := h.Service.ListUsers(r.Context(), actor, directory.UserFilter{
		DepartmentID: q.Get("departmentId"),
		Role:         q.Get("role"),
		Status:       q.Get("status"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []directory.User{}
	}
	api.Success(w, api.Page{Items: users, Total: total, Limit: page.Limit, Offset: page.Offset}, api.RequestIDFrom(r))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload createUserRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	user, err := h.Service.CreateUser(r.Context(), actor, directory.CreateUserInput{
		Email:        payload.Email,
		FullName:     payload.FullName,
		Password:     payload.Password,
		Role:         payload.Role,
		DepartmentID: payload.DepartmentID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, user, api.RequestIDFrom(r))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload updateUserRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	user, err := h.Service.UpdateUser(r.Context(), actor, chi.URLParam(r, "userID"), directory.UpdateUserInput{
		FullName:     payload.FullName,
		Role:         payload.Role,
		DepartmentID: payload.DepartmentID,
		Status:       payload.Status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, user, api.RequestIDFrom(r))
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	depts, err := h.Service.ListDepartments(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if depts == nil {
		depts = []directory.Department{}
	}
	api.Success(w, depts, api.RequestIDFrom(r))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload departmentRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	dept, err := h.Service.CreateDepartment(r.Context(), actor, payload.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, dept, api.RequestIDFrom(r))
}

func (h *Handler) handleSetHead(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload departmentHeadRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	dept, err := h.Service.SetDepartmentHead(r.Context(), actor, chi.URLParam(r, "departmentID"), payload.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, dept, api.RequestIDFrom(r))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := api.RequestIDFrom(r)
	var validation *directory.ValidationError
	switch {
	case errors.As(err, &validation):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: validation.Field, Reason: validation.Reason}})
	case errors.Is(err, directory.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, directory.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	case errors.Is(err, directory.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "resource already exists", requestID)
	default:
		h.Log.Error("directory request failed", zap.String("request_id", requestID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
