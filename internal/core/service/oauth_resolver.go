package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	// maxUsernameProbes bounds the suffix search so an inconsistent store
	// cannot keep the loop alive.
	maxUsernameProbes = 1000
	// maxCreateAttempts bounds the insert retries after a unique-index conflict.
	maxCreateAttempts = 3
	// baseUsernameLen leaves room for a numeric suffix within maxUsernameLen.
	baseUsernameLen = maxUsernameLen - 6
)

// OAuthOutcome tells how Resolve arrived at the returned account.
type OAuthOutcome string

const (
	OAuthExisting OAuthOutcome = "existing"
	OAuthLinked   OAuthOutcome = "linked"
	OAuthCreated  OAuthOutcome = "created"
)

// ErrSubjectMismatch is returned when the provider email belongs to an
// account already linked to a different provider subject.
var ErrSubjectMismatch = &domain.Error{Kind: domain.KindConflict, Message: "email is linked to a different Google account"}

// OAuthResolver maps a verified provider identity to a local account,
// linking by email or creating the account when needed.
type OAuthResolver struct {
	verifier ports.IdentityVerifier
	repo     ports.UserRepository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewOAuthResolver returns an OAuthResolver. A nil now uses time.Now.
func NewOAuthResolver(verifier ports.IdentityVerifier, repo ports.UserRepository, now func() time.Time, logger zerolog.Logger) *OAuthResolver {
	if now == nil {
		now = time.Now
	}
	return &OAuthResolver{verifier: verifier, repo: repo, now: now, logger: logger}
}

// Resolve verifies providerToken and returns the matching local account.
// Lookup is by provider subject first, then by email.
func (r *OAuthResolver) Resolve(ctx context.Context, providerToken string) (*domain.User, OAuthOutcome, error) {
	if strings.TrimSpace(providerToken) == "" {
		return nil, "", domain.ErrInvalidToken
	}

	profile, err := r.verifier.Verify(ctx, providerToken)
	if err != nil {
		if domain.IsKind(err, domain.KindDependency) {
			return nil, "", err
		}
		r.logger.Debug().Err(err).Msg("provider token rejected")
		return nil, "", domain.ErrInvalidToken
	}
	if profile == nil || profile.Subject == "" || profile.Email == "" {
		return nil, "", domain.ErrInvalidToken
	}
	profile.Email = NormalizeEmail(profile.Email)

	user, outcome, err := r.findExisting(ctx, profile)
	if err != nil || user != nil {
		return user, outcome, err
	}

	base := baseUsername(profile.Email)
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		username, err := r.availableUsername(ctx, base)
		if err != nil {
			return nil, "", err
		}

		now := r.now().UTC()
		created, err := r.repo.Create(ctx, &domain.User{
			Username:  username,
			Email:     profile.Email,
			OAuthID:   profile.Subject,
			FirstName: profile.GivenName,
			LastName:  profile.FamilyName,
			Avatar:    profile.Picture,
			IsActive:  true,
			Role:      domain.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err == nil {
			r.logger.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("account created from google identity")
			return created, OAuthCreated, nil
		}
		if !domain.IsKind(err, domain.KindConflict) {
			return nil, "", domain.Dependency("failed to create user", err)
		}

		// A concurrent request may have inserted the same identity; treat it
		// as found. Otherwise the username was taken in between: probe again.
		user, outcome, err := r.findExisting(ctx, profile)
		if err != nil || user != nil {
			return user, outcome, err
		}
	}
	return nil, "", domain.Dependency("failed to create user", domain.ErrDuplicateKey)
}

// findExisting returns (nil, "", nil) when no account matches profile.
func (r *OAuthResolver) findExisting(ctx context.Context, profile *ports.ExternalProfile) (*domain.User, OAuthOutcome, error) {
	user, err := r.repo.FindByOAuthID(ctx, profile.Subject)
	if err == nil {
		return user, OAuthExisting, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, "", domain.Dependency("failed to look up user", err)
	}

	user, err = r.repo.FindByEmail(ctx, profile.Email)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, "", nil
		}
		return nil, "", domain.Dependency("failed to look up user", err)
	}
	if user.OAuthID != "" && user.OAuthID != profile.Subject {
		return nil, "", ErrSubjectMismatch
	}
	if !user.IsActive {
		return nil, "", domain.ErrAccountDeactivated
	}

	now := r.now().UTC()
	if err := r.repo.SetOAuthID(ctx, user.ID, profile.Subject, now); err != nil {
		return nil, "", domain.Dependency("failed to link account", err)
	}
	user.OAuthID = profile.Subject
	user.UpdatedAt = now
	r.logger.Info().Str("user_id", user.ID).Msg("google identity linked to existing account")
	return user, OAuthLinked, nil
}

// availableUsername probes base, base1, base2, ... and returns the first
// name not in use. Store errors end the search.
func (r *OAuthResolver) availableUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 1; i <= maxUsernameProbes; i++ {
		taken, err := r.repo.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", domain.Dependency("failed to check username", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", domain.Dependency("no free username for "+base, nil)
}

// baseUsername derives a username from the local part of email.
func baseUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.ToLower(strings.TrimSpace(local))
	if utf8.RuneCountInString(local) > baseUsernameLen {
		local = string([]rune(local)[:baseUsernameLen])
	}
	if utf8.RuneCountInString(local) < minUsernameLen {
		local += "user"
	}
	return local
}
