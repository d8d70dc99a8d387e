package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// AuthService composes credentials, tokens and the Google resolver into the
// sign-in flows exposed over HTTP.
type AuthService struct {
	creds    *CredentialService
	tokens   ports.TokenIssuer
	resolver *OAuthResolver // nil when Google sign-in is not configured
	audit    ports.AuthEventRecorder
	now      func() time.Time
	logger   zerolog.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService wires an AuthService. resolver and audit may be nil.
func NewAuthService(
	creds *CredentialService,
	tokens ports.TokenIssuer,
	resolver *OAuthResolver,
	audit ports.AuthEventRecorder,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		creds:    creds,
		tokens:   tokens,
		resolver: resolver,
		audit:    audit,
		now:      time.Now,
		logger:   logger,
	}
}

// GoogleEnabled reports whether LoginWithGoogle can succeed.
func (s *AuthService) GoogleEnabled() bool { return s.resolver != nil }

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	user, err := s.creds.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.Dependency("failed to issue token", err)
	}
	s.record(domain.EventRegister, user.ID, user.Email)
	return &ports.AuthResult{User: user, Token: token}, nil
}

// Login checks email and password, stamps lastLogin and issues a token.
// A failed attempt leaves the account untouched.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	user, err := s.creds.VerifyCredentials(ctx, email, password)
	if err != nil {
		if domain.IsKind(err, domain.KindAuthentication) {
			s.record(domain.EventLoginFailed, "", NormalizeEmail(email))
		}
		return nil, err
	}
	return s.signIn(ctx, user, domain.EventLogin)
}

// LoginWithGoogle resolves a Google ID token to a local account, creating or
// linking it when needed, and issues a session token.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string) (*ports.AuthResult, error) {
	if s.resolver == nil {
		return nil, domain.Dependency("google sign-in is not configured", nil)
	}
	user, outcome, err := s.resolver.Resolve(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}

	switch outcome {
	case OAuthLinked:
		s.record(domain.EventOAuthLinked, user.ID, user.Email)
	case OAuthCreated:
		s.record(domain.EventOAuthCreated, user.ID, user.Email)
	}
	return s.signIn(ctx, user, domain.EventOAuthLogin)
}

// UpdateProfile applies allow-listed profile changes for user.
func (s *AuthService) UpdateProfile(ctx context.Context, user *domain.User, changes ports.ProfileChanges) (*domain.User, error) {
	return s.creds.UpdateProfile(ctx, user, changes)
}

// ChangePassword replaces user's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) error {
	if err := s.creds.ChangePassword(ctx, user, currentPassword, newPassword); err != nil {
		return err
	}
	s.record(domain.EventPasswordChange, user.ID, user.Email)
	return nil
}

// ListUsers returns a page of accounts for administrators.
func (s *AuthService) ListUsers(ctx context.Context, filter ports.ListUsersFilter) (*ports.Page[domain.PublicUser], error) {
	return s.creds.ListUsers(ctx, filter)
}

func (s *AuthService) signIn(ctx context.Context, user *domain.User, event domain.AuthEventType) (*ports.AuthResult, error) {
	if err := s.creds.UpdateLastLogin(ctx, user); err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domain.Dependency("failed to issue token", err)
	}
	s.record(event, user.ID, user.Email)
	s.logger.Debug().Str("user_id", user.ID).Str("event", string(event)).Msg("signed in")
	return &ports.AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) record(t domain.AuthEventType, userID, subject string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AuthEvent{Type: t, UserID: userID, Subject: subject, Timestamp: s.now().UTC()})
}
