package settingshandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

type Service interface {
	Current(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, actorID string, patch settings.Patch) (settings.Settings, error)
}

type Handler struct {
	Service Service
	Access  *access.Enforcer
	Log     *zap.Logger
}

func NewHandler(service Service, enforcer *access.Enforcer, log *zap.Logger) *Handler {
	return &Handler{Service: service, Access: enforcer, Log: log.Named("http.settings")}
}

// Any signed-in user may read settings; clients need the attachment rules.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.With(middleware.RequireAuth).Get("/", h.handleGet)
		r.With(middleware.RequireCapability(h.Access, access.CapManageSettings)).Put("/", h.handleUpdate)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.Current(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to load settings", api.RequestIDFrom(r))
		return
	}
	api.Success(w, cfg, api.RequestIDFrom(r))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var patch settings.Patch
	if !shared.DecodeJSON(w, r, &patch) {
		return
	}
	cfg, err := h.Service.Update(r.Context(), actor.UserID, patch)
	switch {
	case errors.Is(err, settings.ErrInvalidSetting):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), api.RequestIDFrom(r))
	case err != nil:
		h.Log.Error("settings update failed", zap.String("user_id", actor.UserID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to update settings", api.RequestIDFrom(r))
	default:
		api.Success(w, cfg, api.RequestIDFrom(r))
	}
}
