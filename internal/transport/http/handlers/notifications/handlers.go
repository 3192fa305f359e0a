package notificationshandler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/notifications"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]notifications.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type Handler struct {
	Service  Service
	Settings settings.Provider
	Log      *zap.Logger
}

func NewHandler(service Service, provider settings.Provider, log *zap.Logger) *Handler {
	return &Handler{Service: service, Settings: provider, Log: log.Named("http.notifications")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/read-all", h.handleMarkAllRead)
		r.Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	page := shared.PageFromSettings(r.Context(), r, h.Settings)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	items, total, err := h.Service.List(r.Context(), actor.UserID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		h.Log.Error("notification list failed", zap.String("user_id", actor.UserID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "notification_list_failed", "failed to list notifications", api.RequestIDFrom(r))
		return
	}
	if items == nil {
		items = []notifications.Notification{}
	}
	api.Success(w, api.Page{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, api.RequestIDFrom(r))
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	count, err := h.Service.UnreadCount(r.Context(), actor.UserID)
	if err != nil {
		h.Log.Error("notification count failed", zap.String("user_id", actor.UserID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "notification_count_failed", "failed to count notifications", api.RequestIDFrom(r))
		return
	}
	api.Success(w, map[string]int{"unread": count}, api.RequestIDFrom(r))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	err := h.Service.MarkRead(r.Context(), actor.UserID, chi.URLParam(r, "notificationID"))
	switch {
	case errors.Is(err, notifications.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "notification not found", api.RequestIDFrom(r))
	case err != nil:
		h.Log.Error("notification update failed", zap.String("user_id", actor.UserID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to update notification", api.RequestIDFrom(r))
	default:
		api.Success(w, map[string]string{"status": "read"}, api.RequestIDFrom(r))
	}
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	updated, err := h.Service.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		h.Log.Error("notification update failed", zap.String("user_id", actor.UserID), zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to update notifications", api.RequestIDFrom(r))
		return
	}
	api.Success(w, map[string]int64{"updated": updated}, api.RequestIDFrom(r))
}
