package shared

import (
	"context"
	"net/http"
	"strconv"

	"elms/internal/domain/settings"
)

type Pagination struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	limit := defaultLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Limit: limit, Offset: offset}
}

// PageFromSettings uses pagination_limit as the default page size and
// falls back to the built-in default when settings cannot be read.
func PageFromSettings(ctx context.Context, r *http.Request, provider settings.Provider) Pagination {
	defaultLimit := settings.Defaults().PaginationLimit
	if provider != nil {
		if cfg, err := provider.Current(ctx); err == nil {
			defaultLimit = cfg.PaginationLimit
		}
	}
	return ParsePagination(r, defaultLimit, settings.MaxPaginationLimit)
}
