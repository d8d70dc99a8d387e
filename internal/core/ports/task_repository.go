package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// TaskFilter carries all query parameters for listing tasks.
// CreatedBy is enforced by the service layer for non-admin callers.
type TaskFilter struct {
	CreatedBy string // empty = every creator (admin only)
	Status    string
	Priority  string
	ProjectID string
	Search    string // optional: partial match on title or description
	Page      int
	Limit     int
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	Create(ctx context.Context, t *domain.Task) (*domain.Task, error)
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, int64, error)
}

// ProjectFilter carries all query parameters for listing projects.
type ProjectFilter struct {
	Owner  string // empty = every owner (admin only)
	Search string
	Page   int
	Limit  int
}

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) (*domain.Project, error)
	FindByID(ctx context.Context, id string) (*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ProjectFilter) ([]*domain.Project, int64, error)
}
