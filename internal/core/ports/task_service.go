package ports

import (
	"context"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	ProjectID   string
	AssignedTo  string
	DueDate     *time.Time
}

// TaskPatch carries a partial task update; nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	ProjectID   *string
	AssignedTo  *string
	DueDate     *time.Time
}

// TaskService defines use-case operations for tasks. The actor is the
// authenticated caller.
type TaskService interface {
	Create(ctx context.Context, actor *domain.User, in TaskInput) (*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, actor *domain.User, id string, patch TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, actor *domain.User, id string) error
	List(ctx context.Context, actor *domain.User, filter TaskFilter) (*Page[*domain.Task], error)
}

// ProjectInput carries the fields accepted when creating a project.
type ProjectInput struct {
	Name        string
	Description string
}

// ProjectPatch carries a partial project update; nil means unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
}

// ProjectService defines use-case operations for projects.
type ProjectService interface {
	Create(ctx context.Context, actor *domain.User, in ProjectInput) (*domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	Update(ctx context.Context, actor *domain.User, id string, patch ProjectPatch) (*domain.Project, error)
	Delete(ctx context.Context, actor *domain.User, id string) error
	List(ctx context.Context, actor *domain.User, filter ProjectFilter) (*Page[*domain.Project], error)
}
