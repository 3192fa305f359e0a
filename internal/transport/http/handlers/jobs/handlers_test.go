package jobshandler

import (
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
	"elms/internal/domain/reports"
	"elms/internal/platform/events"
	"elms/internal/platform/jobs"
	"elms/internal/transport/http/middleware"
)

type fakeRunner struct {
	ran    []string
	queued []string
}

func (f *fakeRunner) RunNow(_ context.Context, jobType string) (any, error) {
	if jobType != jobs.JobOutboxRelay {
		return nil, fmt.Errorf("%w: %s", jobs.ErrUnknownJob, jobType)
	}
	f.ran = append(f.ran, jobType)
	return events.RelayResult{Sent: 2}, nil
}

func (f *fakeRunner) Enqueue(jobType string) error {
	f.queued = append(f.queued, jobType)
	return nil
}

type fakeHistory struct{}

func (fakeHistory) JobRuns(context.Context, access.ActorContext, reports.JobRunFilter, int, int) ([]reports.JobRun, int, error) {
	return []reports.JobRun{{ID: "r1", JobType: jobs.JobOutboxRelay, Status: jobs.StatusCompleted}}, 1, nil
}

func (fakeHistory) JobRun(_ context.Context, _ access.ActorContext, id string) (reports.JobRun, error) {
	if id != "r1" {
		return reports.JobRun{}, reports.ErrNotFound
	}
	return reports.JobRun{ID: id}, nil
}

func serve(runner Runner, role, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(runner, fakeHistory{}, access.MustDefault(), zap.NewNop()).RegisterRoutes(r)
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), &auth.Claims{UserID: "admin", Role: role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRunJobInline(t *testing.T) {
	runner := &fakeRunner{}
	rec := serve(runner, access.RoleAdmin, http.MethodPost, "/jobs/outbox_relay/run")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{jobs.JobOutboxRelay}, runner.ran)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestRunJobAsync(t *testing.T) {
	runner := &fakeRunner{}
	rec := serve(runner, access.RoleAdmin, http.MethodPost, "/jobs/outbox_relay/run?async=true")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{jobs.JobOutboxRelay}, runner.queued)
}

func TestRunUnknownJob(t *testing.T) {
	rec := serve(&fakeRunner{}, access.RoleAdmin, http.MethodPost, "/jobs/nope/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_job")
}

func TestJobsRequireRunCapability(t *testing.T) {
	rec := serve(&fakeRunner{}, access.RoleHRAdmin, http.MethodPost, "/jobs/outbox_relay/run")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRunHistory(t *testing.T) {
	rec := serve(&fakeRunner{}, access.RoleAdmin, http.MethodGet, "/jobs/runs?jobType=outbox_relay")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = serve(&fakeRunner{}, access.RoleAdmin, http.MethodGet, "/jobs/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
