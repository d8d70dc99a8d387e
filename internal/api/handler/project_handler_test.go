package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

type stubProjectService struct {
	project    *domain.Project
	lastFilter ports.ProjectFilter
	err        error
}

func (s *stubProjectService) Create(_ context.Context, actor *domain.User, in ports.ProjectInput) (*domain.Project, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Project{ID: "p1", Name: in.Name, Owner: actor.ID}, nil
}

func (s *stubProjectService) Get(context.Context, string) (*domain.Project, error) {
	return s.project, s.err
}

func (s *stubProjectService) Update(context.Context, *domain.User, string, ports.ProjectPatch) (*domain.Project, error) {
	return s.project, s.err
}

func (s *stubProjectService) Delete(context.Context, *domain.User, string) error { return s.err }

func (s *stubProjectService) List(_ context.Context, _ *domain.User, filter ports.ProjectFilter) (*ports.Page[*domain.Project], error) {
	s.lastFilter = filter
	return ports.NewPage([]*domain.Project{s.project}, 1, 1, 20), s.err
}

func TestProjectHandler_Create(t *testing.T) {
	c, rec := jsonContext(newTestEcho(), http.MethodPost, "/api/projects", `{"name":"Launch"}`, taskOwner)

	if err := NewProjectHandler(&stubProjectService{}).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"owner":"u1"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestProjectHandler_Create_MissingName(t *testing.T) {
	c, _ := jsonContext(newTestEcho(), http.MethodPost, "/api/projects", `{"description":"no name"}`, taskOwner)

	err := NewProjectHandler(&stubProjectService{}).Create(c)
	if !domain.IsKind(err, domain.KindValidation) || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("expected name validation error, got %v", err)
	}
}

func TestProjectHandler_Get_CanEdit(t *testing.T) {
	svc := &stubProjectService{project: &domain.Project{ID: "p1", Name: "Launch", Owner: "u1"}}

	c, rec := jsonContext(newTestEcho(), http.MethodGet, "/api/projects/p1", "", taskOther)
	if err := NewProjectHandler(svc).Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"canEdit":false`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	c, rec = jsonContext(newTestEcho(), http.MethodGet, "/api/projects/p1", "", taskOwner)
	if err := NewProjectHandler(svc).Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"canEdit":true`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestProjectHandler_List(t *testing.T) {
	svc := &stubProjectService{project: &domain.Project{ID: "p1", Name: "Launch", Owner: "u1"}}
	c, rec := jsonContext(newTestEcho(), http.MethodGet, "/api/projects?search=lau", "", taskOwner)

	if err := NewProjectHandler(svc).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if svc.lastFilter.Search != "lau" {
		t.Fatalf("search not forwarded: %+v", svc.lastFilter)
	}
	if !strings.Contains(rec.Body.String(), `"data":[{"id":"p1"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestProjectHandler_Delete_Forbidden(t *testing.T) {
	c, _ := jsonContext(newTestEcho(), http.MethodDelete, "/api/projects/p1", "", taskOther)
	if err := NewProjectHandler(&stubProjectService{err: domain.ErrForbidden}).Delete(c); !domain.IsKind(err, domain.KindAuthorization) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
