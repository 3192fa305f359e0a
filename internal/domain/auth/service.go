package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"elms/internal/domain/audit"
	"elms/internal/platform/cache"
	"elms/internal/platform/crypto"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa code required")
	ErrInvalidMFACode     = errors.New("invalid mfa code")
	ErrMFANotSetUp        = errors.New("mfa setup required")
	ErrMFAUnavailable     = errors.New("mfa requires an encryption key")
	ErrTokenRevoked       = errors.New("token revoked")
)

const mfaIssuer = "ELMS"

type Service struct {
	store     StoreAPI
	auditor   Auditor
	box       *crypto.Box
	blacklist cache.TokenBlacklist
	secret    string
	ttl       time.Duration
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store StoreAPI, auditor Auditor, box *crypto.Box, blacklist cache.TokenBlacklist, secret string, ttl time.Duration, log *zap.Logger, opts ...Option) *Service {
	if blacklist == nil {
		blacklist = cache.NoopBlacklist{}
	}
	s := &Service{
		store:     store,
		auditor:   auditor,
		box:       box,
		blacklist: blacklist,
		secret:    secret,
		ttl:       ttl,
		log:       log.Named("auth"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the password and, when enabled, the TOTP code, then issues a token.
// Unknown, disabled and wrong-password accounts fail alike.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (LoginResult, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if user.Status != UserStatusActive || CheckPassword(user.PasswordHash, password) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			return LoginResult{}, ErrMFARequired
		}
		secret, err := s.box.OpenString(user.MFASecretEnc)
		if err != nil || secret == "" || !totp.Validate(mfaCode, secret) {
			return LoginResult{}, ErrInvalidMFACode
		}
	}

	token, claims, err := GenerateToken(s.secret, Claims{
		UserID:       user.ID,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
	}, s.now(), s.ttl)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.Warn("update last_login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.audit(ctx, user.ID, audit.ActionLogin, map[string]any{"mfa": user.MFAEnabled})

	return LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Authenticate parses a bearer token and rejects revoked ones. A blacklist
// outage is logged and the token accepted.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.log.Warn("token blacklist lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return claims, nil
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *Service) Logout(ctx context.Context, claims Claims) error {
	return s.blacklist.Revoke(ctx, claims.ID, claims.Remaining(s.now()))
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.store.FindUserByID(ctx, userID)
}

// SetupMFA stores a fresh, not yet enabled TOTP secret.
func (s *Service) SetupMFA(ctx context.Context, userID string) (MFASetup, error) {
	if !s.box.Enabled() {
		return MFASetup{}, ErrMFAUnavailable
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return MFASetup{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, err
	}
	sealed, err := s.box.SealString(key.Secret())
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.store.UpdateMFASecret(ctx, userID, sealed); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, userID, code string) error {
	return s.toggleMFA(ctx, userID, code, true)
}

func (s *Service) DisableMFA(ctx context.Context, userID, code string) error {
	return s.toggleMFA(ctx, userID, code, false)
}

func (s *Service) toggleMFA(ctx context.Context, userID, code string, enabled bool) error {
	if !s.box.Enabled() {
		return ErrMFAUnavailable
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if len(user.MFASecretEnc) == 0 {
		return ErrMFANotSetUp
	}
	secret, err := s.box.OpenString(user.MFASecretEnc)
	if err != nil || !totp.Validate(code, secret) {
		return ErrInvalidMFACode
	}
	if err := s.store.SetMFAEnabled(ctx, userID, enabled); err != nil {
		return err
	}
	s.audit(ctx, userID, audit.ActionMFAChanged, map[string]any{"enabled": enabled})
	return nil
}

func (s *Service) audit(ctx context.Context, userID, action string, details any) {
	if s.auditor == nil {
		return
	}
	entry, err := audit.NewEntry(ctx, userID, action, "user", userID, details)
	if err == nil {
		err = s.auditor.Record(ctx, entry)
	}
	if err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
