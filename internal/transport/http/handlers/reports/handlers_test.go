package reportshandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/auth"
	"elms/internal/domain/reports"
	"elms/internal/transport/http/middleware"
)

type fakeService struct {
	filter reports.LeaveFilter
	format string
	year   int
}

func (f *fakeService) Leave(_ context.Context, _ access.ActorContext, filter reports.LeaveFilter) (reports.LeaveReport, error) {
	f.filter = filter
	return reports.LeaveReport{Items: []reports.LeaveRow{}, Total: 0}, nil
}

func (f *fakeService) Export(_ context.Context, _ access.ActorContext, filter reports.LeaveFilter, format string) (reports.Export, error) {
	f.filter = filter
	f.format = format
	if format != reports.FormatXLSX && format != reports.FormatPDF {
		return reports.Export{}, reports.ErrInvalidFormat
	}
	return reports.Export{FileName: "leave-report-20260301." + format, ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

func (f *fakeService) Calendar(context.Context, access.ActorContext, reports.LeaveFilter) (reports.Export, error) {
	return reports.Export{FileName: "leave-calendar.ics", ContentType: "text/calendar; charset=utf-8", Data: []byte("BEGIN:VCALENDAR")}, nil
}

func (f *fakeService) Balances(_ context.Context, _ access.ActorContext, year int, _ string) ([]reports.BalanceRow, error) {
	f.year = year
	return nil, nil
}

func serve(svc Service, role, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(svc, access.MustDefault(), nil, zap.NewNop()).RegisterRoutes(r)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), &auth.Claims{UserID: "u1", Role: role, DepartmentID: "d1"}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLeaveReportFilters(t *testing.T) {
	svc := &fakeService{}
	rec := serve(svc, access.RoleHRAdmin, "/reports/leave?from=2026-01-01&to=2026-06-30&status=approved&limit=20")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.From)
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), *svc.filter.To)
	assert.Equal(t, "approved", svc.filter.Status)
	assert.Equal(t, 20, svc.filter.Limit)
}

func TestLeaveReportRejectsInvertedRange(t *testing.T) {
	rec := serve(&fakeService{}, access.RoleHRAdmin, "/reports/leave?from=2026-02-01&to=2026-01-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportStreamsFile(t *testing.T) {
	svc := &fakeService{}
	rec := serve(svc, access.RoleHRAdmin, "/reports/leave/export?format=PDF")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reports.FormatPDF, svc.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leave-report-20260301.pdf")
	assert.Equal(t, "%PDF", rec.Body.String())
}

func TestExportDefaultsToXLSXAndRejectsUnknown(t *testing.T) {
	svc := &fakeService{}
	serve(svc, access.RoleHRAdmin, "/reports/leave/export")
	assert.Equal(t, reports.FormatXLSX, svc.format)

	rec := serve(svc, access.RoleHRAdmin, "/reports/leave/export?format=csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendar(t *testing.T) {
	rec := serve(&fakeService{}, access.RoleDean, "/reports/leave/calendar.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestReportsRequireCapability(t *testing.T) {
	rec := serve(&fakeService{}, access.RoleStaff, "/reports/balances")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc := &fakeService{}
	rec = serve(svc, access.RoleHRAdmin, "/reports/balances?year=2025")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2025, svc.year)
}
