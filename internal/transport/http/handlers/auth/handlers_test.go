package authhandler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elms/internal/domain/auth"
	"elms/internal/transport/http/middleware"
)

type fakeService struct {
	loginErr  error
	mfaErr    error
	revoked   string
	mfaCode   string
	lastEmail string
}

func (f *fakeService) Login(_ context.Context, email, _, _ string) (auth.LoginResult, error) {
	f.lastEmail = email
	if f.loginErr != nil {
		return auth.LoginResult{}, f.loginErr
	}
	return auth.LoginResult{Token: "tok", ExpiresAt: time.Now().Add(time.Hour), User: auth.User{ID: "u1", Email: email}}, nil
}

func (f *fakeService) Logout(_ context.Context, claims auth.Claims) error {
	f.revoked = claims.ID
	return nil
}

func (f *fakeService) Me(_ context.Context, userID string) (auth.User, error) {
	return auth.User{ID: userID, Email: "a@example.com"}, nil
}

func (f *fakeService) SetupMFA(context.Context, string) (auth.MFASetup, error) {
	return auth.MFASetup{Secret: "S"}, f.mfaErr
}

func (f *fakeService) EnableMFA(_ context.Context, _ string, code string) error {
	f.mfaCode = code
	return f.mfaErr
}

func (f *fakeService) DisableMFA(_ context.Context, _ string, code string) error {
	f.mfaCode = code
	return f.mfaErr
}

func serve(svc Service, claims *auth.Claims, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(r)
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func staffClaims() *auth.Claims {
	c := &auth.Claims{UserID: "u1", Role: "staff"}
	c.ID = "jti-1"
	return c
}

func TestLogin(t *testing.T) {
	svc := &fakeService{}
	rec := serve(svc, nil, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token":"tok"`)
	assert.Equal(t, "a@example.com", svc.lastEmail)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		code int
		want string
	}{
		{"bad credentials", auth.ErrInvalidCredentials, `{"email":"a@example.com","password":"x"}`, http.StatusUnauthorized, "invalid_credentials"},
		{"mfa required", auth.ErrMFARequired, `{"email":"a@example.com","password":"x"}`, http.StatusUnauthorized, "mfa_required"},
		{"bad mfa", auth.ErrInvalidMFACode, `{"email":"a@example.com","password":"x","mfaCode":"123456"}`, http.StatusUnauthorized, "mfa_invalid"},
		{"invalid email", nil, `{"email":"nope","password":"x"}`, http.StatusBadRequest, "validation_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(&fakeService{loginErr: tc.err}, nil, http.MethodPost, "/auth/login", tc.body)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
}

func TestLogoutRevokesTokenID(t *testing.T) {
	svc := &fakeService{}
	rec := serve(svc, staffClaims(), http.MethodPost, "/auth/logout", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jti-1", svc.revoked)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	rec := serve(&fakeService{}, nil, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMFAEnable(t *testing.T) {
	svc := &fakeService{}
	rec := serve(svc, staffClaims(), http.MethodPost, "/auth/mfa/enable", `{"code":"654321"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "654321", svc.mfaCode)

	rec = serve(&fakeService{mfaErr: auth.ErrMFANotSetUp}, staffClaims(), http.MethodPost, "/auth/mfa/disable", `{"code":"654321"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "mfa_missing")

	rec = serve(&fakeService{mfaErr: auth.ErrMFAUnavailable}, staffClaims(), http.MethodPost, "/auth/mfa/setup", "")
	assert.Contains(t, rec.Body.String(), "mfa_unavailable")
}
