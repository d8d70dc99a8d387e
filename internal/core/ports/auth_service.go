package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// RegisterInput carries the fields accepted by password registration.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is returned by every successful sign-in path.
type AuthResult struct {
	User  *domain.User
	Token string
}

// AuthService is the entry point used by the HTTP layer for registration,
// login and account self-service.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*AuthResult, error)
	UpdateProfile(ctx context.Context, user *domain.User, changes ProfileChanges) (*domain.User, error)
	ChangePassword(ctx context.Context, user *domain.User, currentPassword, newPassword string) error
	ListUsers(ctx context.Context, filter ListUsersFilter) (*Page[domain.PublicUser], error)
}
