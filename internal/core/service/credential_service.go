package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	// DefaultBcryptCost is the hashing cost for stored passwords.
	DefaultBcryptCost = 12

	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
)

var validate = validator.New()

// CredentialService owns user records and password secrecy. Hashing happens
// inline in Register and ChangePassword; nothing else ever rehashes.
type CredentialService struct {
	repo   ports.UserRepository
	cost   int
	now    func() time.Time
	logger zerolog.Logger
}

// NewCredentialService returns a CredentialService. cost <= 0 selects
// DefaultBcryptCost; a nil now uses time.Now.
func NewCredentialService(repo ports.UserRepository, cost int, now func() time.Time, logger zerolog.Logger) *CredentialService {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if now == nil {
		now = time.Now
	}
	return &CredentialService{repo: repo, cost: cost, now: now, logger: logger}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account. It fails with domain.ErrUserExists
// when the email (case-insensitive) or username is already taken.
func (s *CredentialService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByEmailOrUsername(ctx, in.Email, in.Username)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrUserExists
	case err != nil && !domain.IsKind(err, domain.KindNotFound):
		return nil, domain.Dependency("failed to check existing users", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			return nil, domain.ErrUserExists
		}
		return nil, domain.Dependency("failed to create user", err)
	}

	s.logger.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user registered")
	return created, nil
}

// VerifyCredentials returns the active account matching email whose password
// hash matches password. Unknown email, inactive account and wrong password
// all yield domain.ErrInvalidCredentials; accounts without a password yield
// domain.ErrOAuthOnlyAccount.
func (s *CredentialService) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Dependency("failed to look up user", err)
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.HasPassword() {
		return nil, domain.ErrOAuthOnlyAccount
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// UpdateLastLogin stamps the login time with a targeted update.
func (s *CredentialService) UpdateLastLogin(ctx context.Context, user *domain.User) error {
	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return domain.Dependency("failed to record login", err)
	}
	user.LastLogin = &now
	return nil
}

// FindByID returns the user with id or a NotFoundError.
func (s *CredentialService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, err
		}
		return nil, domain.Dependency("failed to look up user", err)
	}
	return user, nil
}

// ChangePassword replaces the stored hash after checking currentPassword.
func (s *CredentialService) ChangePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) error {
	if !user.HasPassword() {
		return domain.ErrNoPasswordSet
	}
	if utf8.RuneCountInString(newPassword) < minPasswordLen {
		return domain.Validation(fmt.Sprintf("new password must be at least %d characters", minPasswordLen))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return domain.ErrWrongPassword
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return domain.Dependency("failed to update password", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = now
	return nil
}

// UpdateProfile applies the allow-listed profile changes.
func (s *CredentialService) UpdateProfile(ctx context.Context, user *domain.User, changes ports.ProfileChanges) (*domain.User, error) {
	if changes.Username != nil {
		name := strings.TrimSpace(*changes.Username)
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		changes.Username = &name
	}
	for _, f := range []*string{changes.FirstName, changes.LastName} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, user.ID, changes, s.now().UTC())
	if err != nil {
		switch {
		case domain.IsKind(err, domain.KindConflict):
			return nil, &domain.Error{Kind: domain.KindConflict, Message: "username already taken"}
		case domain.IsKind(err, domain.KindNotFound):
			return nil, err
		}
		return nil, domain.Dependency("failed to update profile", err)
	}
	return updated, nil
}

// ListUsers returns a page of accounts.
func (s *CredentialService) ListUsers(ctx context.Context, filter ports.ListUsersFilter) (*ports.Page[domain.PublicUser], error) {
	filter.Page, filter.Limit = ports.NormalizePaging(filter.Page, filter.Limit)

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.Dependency("failed to list users", err)
	}
	items := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		items = append(items, u.Public())
	}
	return ports.NewPage(items, total, filter.Page, filter.Limit), nil
}

func (s *CredentialService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Validation("password must be at most 72 bytes")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func validateRegistration(in ports.RegisterInput) error {
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if in.Email == "" {
		return domain.Validation("email is required")
	}
	if validate.Var(in.Email, "email") != nil {
		return domain.Validation("email must be a valid email")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return domain.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if in.FirstName == "" || in.LastName == "" {
		return domain.Validation("firstName and lastName are required")
	}
	return nil
}

func validateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minUsernameLen || n > maxUsernameLen {
		return domain.Validation(fmt.Sprintf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}
	return nil
}
