package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/audit"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/api"
	"elms/internal/transport/http/middleware"
	"elms/internal/transport/http/shared"
)

// exportLimit caps a single CSV export.
const exportLimit = 10000

type Store interface {
	List(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Entry, error)
	Count(ctx context.Context, filter audit.Filter) (int, error)
}

type Handler struct {
	Store    Store
	Access   *access.Enforcer
	Settings settings.Provider
	Log      *zap.Logger
}

func NewHandler(store Store, enforcer *access.Enforcer, provider settings.Provider, log *zap.Logger) *Handler {
	return &Handler{Store: store, Access: enforcer, Settings: provider, Log: log.Named("http.audit")}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequireCapability(h.Access, access.CapViewAudit))
		r.Get("/", h.handleList)
		r.Get("/export", h.handleExport)
	})
}

func (h *Handler) parseFilter(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		UserID:     q.Get("userId"),
	}
	var issues []shared.ValidationIssue
	if from, err := shared.OptionalDate(q.Get("from")); err != nil {
		issues = append(issues, shared.ValidationIssue{Field: "from", Reason: "must be a date"})
	} else if from != nil {
		filter.From = *from
	}
	if to, err := shared.OptionalDate(q.Get("to")); err != nil {
		issues = append(issues, shared.ValidationIssue{Field: "to", Reason: "must be a date"})
	} else if to != nil {
		filter.To = *to
	}
	if len(issues) > 0 {
		shared.FailValidation(w, api.RequestIDFrom(r), issues)
		return audit.Filter{}, false
	}
	return filter, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	page := shared.PageFromSettings(r.Context(), r, h.Settings)

	total, err := h.Store.Count(r.Context(), filter)
	if err != nil {
		h.Log.Warn("audit count failed", zap.Error(err))
	}
	entries, err := h.Store.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		h.Log.Error("audit list failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit entries", api.RequestIDFrom(r))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	api.Success(w, api.Page{Items: entries, Total: total, Limit: page.Limit, Offset: page.Offset}, api.RequestIDFrom(r))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	entries, err := h.Store.List(r.Context(), filter, exportLimit, 0)
	if err != nil {
		h.Log.Error("audit export failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit entries", api.RequestIDFrom(r))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-log.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "user_id", "action", "entity_type", "entity_id", "ip_address", "user_agent", "created_at", "details"}); err != nil {
		h.Log.Warn("audit export header failed", zap.Error(err))
	}
	for _, e := range entries {
		row := []string{e.ID, e.UserID, e.Action, e.EntityType, e.EntityID, e.IPAddress, e.UserAgent, e.CreatedAt.UTC().Format(time.RFC3339), string(e.Details)}
		if err := writer.Write(row); err != nil {
			h.Log.Warn("audit export row failed", zap.Error(err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.Log.Warn("audit export flush failed", zap.Error(err))
	}
}
