package settingshandler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/auth"
	"elms/internal/domain/settings"
	"elms/internal/transport/http/middleware"
)

type fakeService struct {
	cfg     settings.Settings
	actorID string
}

func (f *fakeService) Current(context.Context) (settings.Settings, error) { return f.cfg, nil }

func (f *fakeService) Update(_ context.Context, actorID string, patch settings.Patch) (settings.Settings, error) {
	f.actorID = actorID
	next := f.cfg.Apply(patch)
	if err := next.Validate(); err != nil {
		return settings.Settings{}, fmt.Errorf("update: %w", err)
	}
	f.cfg = next
	return next, nil
}

func serve(svc Service, role, method, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(svc, access.MustDefault(), zap.NewNop()).RegisterRoutes(r)
	req := httptest.NewRequest(method, "/settings/", bytes.NewBufferString(body))
	req = req.WithContext(middleware.WithClaims(req.Context(), &auth.Claims{UserID: "admin-1", Role: role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStaffCanReadButNotWrite(t *testing.T) {
	svc := &fakeService{cfg: settings.Defaults()}

	rec := serve(svc, access.RoleStaff, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaveApprovalLevels")

	rec = serve(svc, access.RoleStaff, http.MethodPut, `{"paginationLimit":50}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminUpdates(t *testing.T) {
	svc := &fakeService{cfg: settings.Defaults()}

	rec := serve(svc, access.RoleAdmin, http.MethodPut, `{"leaveApprovalLevels":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.cfg.ApprovalLevels)
	assert.Equal(t, "admin-1", svc.actorID)
}

func TestUpdateRejectsOutOfRange(t *testing.T) {
	svc := &fakeService{cfg: settings.Defaults()}

	rec := serve(svc, access.RoleAdmin, http.MethodPut, `{"leaveApprovalLevels":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}
