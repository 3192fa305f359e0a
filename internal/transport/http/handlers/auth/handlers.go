package authhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/auth"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password, mfaCode string) (auth.LoginResult, error)
	Logout(ctx context.Context, claims auth.Claims) error
	Me(ctx context.Context, userID string) (auth.User, error)
	SetupMFA(ctx context.Context, userID string) (auth.MFASetup, error)
	EnableMFA(ctx context.Context, userID, code string) error
	DisableMFA(ctx context.Context, userID, code string) error
}

type Handler struct {
	Service Service
	Log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{Service: service, Log: log.Named("http.auth")}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode" validate:"omitempty,numeric,len=6"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/me", h.HandleMe)
			r.Post("/logout", h.HandleLogout)
			r.Post("/mfa/setup", h.HandleMFASetup)
			r.Post("/mfa/enable", h.HandleMFAEnable)
			r.Post("/mfa/disable", h.HandleMFADisable)
		})
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	result, err := h.Service.Login(r.Context(), payload.Email, payload.Password, payload.MFACode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, result, api.RequestIDFrom(r))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetClaims(r.Context())
	user, err := h.Service.Me(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, user, api.RequestIDFrom(r))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetClaims(r.Context())
	if err := h.Service.Logout(r.Context(), *claims); err != nil {
		h.Log.Error("token revoke failed", zap.String("user_id", claims.UserID), zap.Error(err))
		api.Fail(w, http.StatusServiceUnavailable, "logout_failed", "could not revoke token", api.RequestIDFrom(r))
		return
	}
	api.Success(w, map[string]string{"status": "logged_out"}, api.RequestIDFrom(r))
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetClaims(r.Context())
	setup, err := h.Service.SetupMFA(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, setup, api.RequestIDFrom(r))
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, h.Service.EnableMFA, "enabled")
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, h.Service.DisableMFA, "disabled")
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, string) error, status string) {
	claims, _ := middleware.GetClaims(r.Context())
	var payload mfaCodeRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	if err := apply(r.Context(), claims.UserID, payload.Code); err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": status}, api.RequestIDFrom(r))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := api.RequestIDFrom(r)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
	case errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", requestID)
	case errors.Is(err, auth.ErrInvalidMFACode):
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", requestID)
	case errors.Is(err, auth.ErrMFANotSetUp):
		api.Fail(w, http.StatusBadRequest, "mfa_missing", "mfa setup required", requestID)
	case errors.Is(err, auth.ErrMFAUnavailable):
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", "mfa requires encryption key", requestID)
	case errors.Is(err, auth.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", requestID)
	default:
		h.Log.Error("auth request failed", zap.String("request_id", requestID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
