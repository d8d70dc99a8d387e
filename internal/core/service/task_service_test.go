package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubTaskRepo struct {
	byID       map[string]*domain.Task
	next       int
	lastFilter ports.TaskFilter
	err        error
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{byID: make(map[string]*domain.Task)}
}

func (r *stubTaskRepo) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.next++
	clone := *t
	clone.ID = "t" + strconv.Itoa(r.next)
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubTaskRepo) FindByID(_ context.Context, id string) (*domain.Task, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, domain.NotFound("task")
	}
	clone := *t
	return &clone, nil
}

func (r *stubTaskRepo) Update(_ context.Context, t *domain.Task) error {
	if _, ok := r.byID[t.ID]; !ok {
		return domain.NotFound("task")
	}
	clone := *t
	r.byID[t.ID] = &clone
	return nil
}

func (r *stubTaskRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return domain.NotFound("task")
	}
	delete(r.byID, id)
	return nil
}

func (r *stubTaskRepo) List(_ context.Context, f ports.TaskFilter) ([]*domain.Task, int64, error) {
	r.lastFilter = f
	if r.err != nil {
		return nil, 0, r.err
	}
	var matched []*domain.Task
	for _, t := range r.byID {
		if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		clone := *t
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, int64(len(matched)), nil
}

type stubProjectRepo struct {
	byID map[string]*domain.Project
	next int
}

func newStubProjectRepo() *stubProjectRepo {
	return &stubProjectRepo{byID: make(map[string]*domain.Project)}
}

func (r *stubProjectRepo) Create(_ context.Context, p *domain.Project) (*domain.Project, error) {
	r.next++
	clone := *p
	clone.ID = "p" + strconv.Itoa(r.next)
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubProjectRepo) FindByID(_ context.Context, id string) (*domain.Project, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.NotFound("project")
	}
	clone := *p
	return &clone, nil
}

func (r *stubProjectRepo) Update(_ context.Context, p *domain.Project) error {
	if _, ok := r.byID[p.ID]; !ok {
		return domain.NotFound("project")
	}
	clone := *p
	r.byID[p.ID] = &clone
	return nil
}

func (r *stubProjectRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return domain.NotFound("project")
	}
	delete(r.byID, id)
	return nil
}

func (r *stubProjectRepo) List(_ context.Context, f ports.ProjectFilter) ([]*domain.Project, int64, error) {
	var matched []*domain.Project
	for _, p := range r.byID {
		if f.Owner != "" && p.Owner != f.Owner {
			continue
		}
		clone := *p
		matched = append(matched, &clone)
	}
	return matched, int64(len(matched)), nil
}

var (
	ownerUser = &domain.User{ID: "u1", Role: domain.RoleUser, IsActive: true}
	otherUser = &domain.User{ID: "u2", Role: domain.RoleUser, IsActive: true}
	adminUser = &domain.User{ID: "u9", Role: domain.RoleAdmin, IsActive: true}
)

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Task tests
// ---------------------------------------------------------------------------

func TestTaskService_Create_Defaults(t *testing.T) {
	svc := NewTaskService(newStubTaskRepo(), newStubProjectRepo(), zerolog.Nop())

	task, err := svc.Create(context.Background(), ownerUser, ports.TaskInput{Title: "  write docs  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Title != "write docs" {
		t.Errorf("title not trimmed: %q", task.Title)
	}
	if task.Status != domain.TaskTodo || task.Priority != domain.PriorityMedium {
		t.Errorf("unexpected defaults: %s/%s", task.Status, task.Priority)
	}
	if task.CreatedBy != ownerUser.ID {
		t.Errorf("createdBy = %q, want %q", task.CreatedBy, ownerUser.ID)
	}
}

func TestTaskService_Create_Validation(t *testing.T) {
	svc := NewTaskService(newStubTaskRepo(), newStubProjectRepo(), zerolog.Nop())

	cases := map[string]ports.TaskInput{
		"missing title":   {Title: " "},
		"bad status":      {Title: "x", Status: "blocked"},
		"bad priority":    {Title: "x", Priority: "urgent"},
		"unknown project": {Title: "x", ProjectID: "p404"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), ownerUser, in); !domain.IsKind(err, domain.KindValidation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	if _, err := svc.Create(context.Background(), nil, ports.TaskInput{Title: "x"}); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for anonymous create, got %v", err)
	}
}

func TestTaskService_UpdateDelete_Ownership(t *testing.T) {
	ctx := context.Background()
	repo := newStubTaskRepo()
	svc := NewTaskService(repo, newStubProjectRepo(), zerolog.Nop())
	task, _ := svc.Create(ctx, ownerUser, ports.TaskInput{Title: "mine"})

	if _, err := svc.Update(ctx, otherUser, task.ID, ports.TaskPatch{Title: strPtr("theirs")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, otherUser, task.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}

	updated, err := svc.Update(ctx, ownerUser, task.ID, ports.TaskPatch{Status: strPtr("done")})
	if err != nil {
		t.Fatalf("owner Update: %v", err)
	}
	if updated.Status != domain.TaskDone || updated.Title != "mine" {
		t.Errorf("unexpected task after patch: %+v", updated)
	}

	if _, err := svc.Update(ctx, adminUser, task.ID, ports.TaskPatch{Priority: strPtr("high")}); err != nil {
		t.Fatalf("admin Update: %v", err)
	}
	if err := svc.Delete(ctx, adminUser, task.ID); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}
	if _, err := svc.Get(ctx, task.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFoundError after delete, got %v", err)
	}
}

func TestTaskService_List_ScopedToCaller(t *testing.T) {
	ctx := context.Background()
	repo := newStubTaskRepo()
	svc := NewTaskService(repo, newStubProjectRepo(), zerolog.Nop())
	_, _ = svc.Create(ctx, ownerUser, ports.TaskInput{Title: "a"})
	_, _ = svc.Create(ctx, otherUser, ports.TaskInput{Title: "b"})

	page, err := svc.List(ctx, ownerUser, ports.TaskFilter{CreatedBy: otherUser.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lastFilter.CreatedBy != ownerUser.ID {
		t.Fatalf("non-admin filter must be forced to the caller, got %q", repo.lastFilter.CreatedBy)
	}
	if page.Total != 1 || page.Items[0].CreatedBy != ownerUser.ID {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Limit != 20 || page.Page != 1 {
		t.Errorf("expected default paging, got page=%d limit=%d", page.Page, page.Limit)
	}

	all, err := svc.List(ctx, adminUser, ports.TaskFilter{Limit: 500})
	if err != nil {
		t.Fatalf("admin List: %v", err)
	}
	if all.Total != 2 {
		t.Fatalf("admin should see every task, got %d", all.Total)
	}
	if repo.lastFilter.Limit != ports.MaxPageLimit {
		t.Errorf("limit not clamped: %d", repo.lastFilter.Limit)
	}

	if _, err := svc.List(ctx, ownerUser, ports.TaskFilter{Status: "blocked"}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError for bad status filter, got %v", err)
	}
}

func TestTaskService_List_StoreFailure(t *testing.T) {
	repo := newStubTaskRepo()
	repo.err = errors.New("cursor closed")
	svc := NewTaskService(repo, newStubProjectRepo(), zerolog.Nop())

	if _, err := svc.List(context.Background(), ownerUser, ports.TaskFilter{}); !domain.IsKind(err, domain.KindDependency) {
		t.Fatalf("expected DependencyError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Project tests
// ---------------------------------------------------------------------------

func TestProjectService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newStubProjectRepo()
	svc := NewProjectService(repo, zerolog.Nop())

	if _, err := svc.Create(ctx, ownerUser, ports.ProjectInput{Name: ""}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	p, err := svc.Create(ctx, ownerUser, ports.ProjectInput{Name: "Launch"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Owner != ownerUser.ID {
		t.Fatalf("owner = %q, want %q", p.Owner, ownerUser.ID)
	}
	if !p.EditableBy(ownerUser) || p.EditableBy(otherUser) || !p.EditableBy(adminUser) || p.EditableBy(nil) {
		t.Fatal("EditableBy does not match owner/admin rules")
	}

	if _, err := svc.Update(ctx, otherUser, p.ID, ports.ProjectPatch{Name: strPtr("Hijack")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	renamed, err := svc.Update(ctx, ownerUser, p.ID, ports.ProjectPatch{Name: strPtr("Launch v2")})
	if err != nil || renamed.Name != "Launch v2" {
		t.Fatalf("owner rename failed: %v %+v", err, renamed)
	}

	_, _ = svc.Create(ctx, otherUser, ports.ProjectInput{Name: "Other"})
	mine, err := svc.List(ctx, ownerUser, ports.ProjectFilter{})
	if err != nil || mine.Total != 1 {
		t.Fatalf("expected one owned project, got %v %+v", err, mine)
	}
	everything, _ := svc.List(ctx, adminUser, ports.ProjectFilter{})
	if everything.Total != 2 {
		t.Fatalf("admin should see both projects, got %d", everything.Total)
	}

	if err := svc.Delete(ctx, ownerUser, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestTaskService_ProjectReference(t *testing.T) {
	ctx := context.Background()
	projects := newStubProjectRepo()
	p, _ := NewProjectService(projects, zerolog.Nop()).Create(ctx, ownerUser, ports.ProjectInput{Name: "Home"})
	svc := NewTaskService(newStubTaskRepo(), projects, zerolog.Nop())

	task, err := svc.Create(ctx, ownerUser, ports.TaskInput{Title: "paint", ProjectID: p.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ProjectID != p.ID {
		t.Fatalf("project = %q, want %q", task.ProjectID, p.ID)
	}
	if _, err := svc.Update(ctx, ownerUser, task.ID, ports.TaskPatch{ProjectID: strPtr("p404")}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
