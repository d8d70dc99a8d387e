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

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
)

type taskService struct {
	tasks    ports.TaskRepository
	projects ports.ProjectRepository
	now      func() time.Time
	log      zerolog.Logger
}

// NewTaskService returns a TaskService implementation. Non-admin callers only
// ever see and modify their own tasks.
func NewTaskService(tasks ports.TaskRepository, projects ports.ProjectRepository, log zerolog.Logger) ports.TaskService {
	return &taskService{tasks: tasks, projects: projects, now: time.Now, log: log}
}

func (s *taskService) Create(ctx context.Context, actor *domain.User, in ports.TaskInput) (*domain.Task, error) {
	if actor == nil {
		return nil, domain.ErrAuthRequired
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, domain.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	status, err := parseTaskStatus(in.Status)
	if err != nil {
		return nil, err
	}
	priority, err := parseTaskPriority(in.Priority)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task, err := s.tasks.Create(ctx, &domain.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		ProjectID:   in.ProjectID,
		CreatedBy:   actor.ID,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, domain.Dependency("failed to create task", err)
	}

	s.log.Info().Str("task_id", task.ID).Str("user_id", actor.ID).Msg("task created")
	return task, nil
}

func (s *taskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, passNotFound(err, "failed to load task")
	}
	return task, nil
}

func (s *taskService) Update(ctx context.Context, actor *domain.User, id string, patch ports.TaskPatch) (*domain.Task, error) {
	task, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		task.Title = title
	}
	if patch.Description != nil {
		if utf8.RuneCountInString(*patch.Description) > maxDescriptionLen {
			return nil, domain.Validation(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
		}
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		if task.Status, err = parseTaskStatus(*patch.Status); err != nil {
			return nil, err
		}
	}
	if patch.Priority != nil {
		if task.Priority, err = parseTaskPriority(*patch.Priority); err != nil {
			return nil, err
		}
	}
	if patch.ProjectID != nil {
		if err := s.checkProject(ctx, *patch.ProjectID); err != nil {
			return nil, err
		}
		task.ProjectID = *patch.ProjectID
	}
	if patch.AssignedTo != nil {
		task.AssignedTo = *patch.AssignedTo
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, passNotFound(err, "failed to update task")
	}
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return passNotFound(err, "failed to delete task")
	}
	s.log.Info().Str("task_id", id).Str("user_id", actor.ID).Msg("task deleted")
	return nil
}

// List returns a page of tasks. Non-admins are restricted to tasks they
// created, whatever CreatedBy the filter carries.
func (s *taskService) List(ctx context.Context, actor *domain.User, filter ports.TaskFilter) (*ports.Page[*domain.Task], error) {
	if actor == nil {
		return nil, domain.ErrAuthRequired
	}
	if !actor.IsAdmin() {
		filter.CreatedBy = actor.ID
	}
	if filter.Status != "" {
		if _, err := parseTaskStatus(filter.Status); err != nil {
			return nil, err
		}
	}
	if filter.Priority != "" {
		if _, err := parseTaskPriority(filter.Priority); err != nil {
			return nil, err
		}
	}
	filter.Page, filter.Limit = ports.NormalizePaging(filter.Page, filter.Limit)

	items, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, domain.Dependency("failed to list tasks", err)
	}
	return ports.NewPage(items, total, filter.Page, filter.Limit), nil
}

func (s *taskService) editable(ctx context.Context, actor *domain.User, id string) (*domain.Task, error) {
	if actor == nil {
		return nil, domain.ErrAuthRequired
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.EditableBy(actor) {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func (s *taskService) checkProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return nil
	}
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Validation("project does not exist")
		}
		return domain.Dependency("failed to load project", err)
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return domain.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return domain.Validation(fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	return nil
}

func parseTaskStatus(v string) (domain.TaskStatus, error) {
	switch st := domain.TaskStatus(v); st {
	case "":
		return domain.TaskTodo, nil
	case domain.TaskTodo, domain.TaskInProgress, domain.TaskDone:
		return st, nil
	}
	return "", domain.Validation("status must be one of todo, in-progress, done")
}

func parseTaskPriority(v string) (domain.TaskPriority, error) {
	switch p := domain.TaskPriority(v); p {
	case "":
		return domain.PriorityMedium, nil
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
		return p, nil
	}
	return "", domain.Validation("priority must be one of low, medium, high")
}

// passNotFound keeps NotFound errors and wraps anything else as a dependency
// failure.
func passNotFound(err error, msg string) error {
	if domain.IsKind(err, domain.KindNotFound) {
		return err
	}
	return domain.Dependency(msg, err)
}
