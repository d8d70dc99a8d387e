package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const maxProjectNameLen = 100

type projectService struct {
	repo ports.ProjectRepository
	now  func() time.Time
	log  zerolog.Logger
}

// NewProjectService returns a ProjectService implementation.
func NewProjectService(repo ports.ProjectRepository, log zerolog.Logger) ports.ProjectService {
	return &projectService{repo: repo, now: time.Now, log: log}
}

func (s *projectService) Create(ctx context.Context, actor *domain.User, in ports.ProjectInput) (*domain.Project, error) {
	if actor == nil {
		return nil, domain.ErrAuthRequired
	}
	name := strings.TrimSpace(in.Name)
	if err := validateProjectName(name); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, domain.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}

	now := s.now().UTC()
	project, err := s.repo.Create(ctx, &domain.Project{
		Name:        name,
		Description: in.Description,
		Owner:       actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, domain.Dependency("failed to create project", err)
	}
	s.log.Info().Str("project_id", project.ID).Str("user_id", actor.ID).Msg("project created")
	return project, nil
}

func (s *projectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, passNotFound(err, "failed to load project")
	}
	return project, nil
}

func (s *projectService) Update(ctx context.Context, actor *domain.User, id string, patch ports.ProjectPatch) (*domain.Project, error) {
	project, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateProjectName(name); err != nil {
			return nil, err
		}
		project.Name = name
	}
	if patch.Description != nil {
		if utf8.RuneCountInString(*patch.Description) > maxDescriptionLen {
			return nil, domain.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
		}
		project.Description = *patch.Description
	}
	project.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, passNotFound(err, "failed to update project")
	}
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return passNotFound(err, "failed to delete project")
	}
	s.log.Info().Str("project_id", id).Str("user_id", actor.ID).Msg("project deleted")
	return nil
}

// List returns a page of projects; non-admins only see projects they own.
func (s *projectService) List(ctx context.Context, actor *domain.User, filter ports.ProjectFilter) (*ports.Page[*domain.Project], error) {
	if actor == nil {
		return nil, domain.ErrAuthRequired
	}
	if !actor.IsAdmin() {
		filter.Owner = actor.ID
	}
	filter.Page, filter.Limit = ports.NormalizePaging(filter.Page, filter.Limit)

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.Dependency("failed to list projects", err)
	}
	return ports.NewPage(items, total, filter.Page, filter.Limit), nil
}

func (s *projectService) editable(ctx context.Context, actor *domain.User, id string) (*domain.Project, error) {
	if actor == nil {
		return nil, domain.ErrAuthRequired
	}
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.EditableBy(actor) {
		return nil, domain.ErrForbidden
	}
	return project, nil
}

func validateProjectName(name string) error {
	if name == "" {
		return domain.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > maxProjectNameLen {
		return domain.Validation(fmt.Sprintf("name must be at most %d characters", maxProjectNameLen))
	}
	return nil
}
