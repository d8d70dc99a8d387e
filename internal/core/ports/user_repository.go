package ports

import (
	"context"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// ProfileChanges carries the allow-listed profile fields; nil means unchanged.
type ProfileChanges struct {
	FirstName *string
	LastName  *string
	Username  *string
}

// ListUsersFilter carries query parameters for the admin user listing.
type ListUsersFilter struct {
	Search string // optional: partial match on username or email
	Page   int    // 1-based
	Limit  int
}

// UserRepository persists user identity records.
//
// Lookups that match nothing return an error of kind domain.KindNotFound.
// Writes that violate a unique index (username, email, oauth id) return an
// error of kind domain.KindConflict.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByOAuthID(ctx context.Context, oauthID string) (*domain.User, error)
	// FindByEmailOrUsername returns the first record matching either value.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	SetOAuthID(ctx context.Context, id, oauthID string, at time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, changes ProfileChanges, at time.Time) (*domain.User, error)

	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
}
