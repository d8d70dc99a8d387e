package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/api/authctx"
	"github.com/taskflow/taskflow-api/internal/core/domain"
)

var (
	alice = &domain.User{ID: "u1", Username: "alice", IsActive: true, Role: domain.RoleUser}
	admin = &domain.User{ID: "u9", Username: "root", IsActive: true, Role: domain.RoleAdmin}
)

func newGuardContext(user *domain.User, method, target, body string) echo.Context {
	e := echo.New()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != nil {
		req = req.WithContext(authctx.WithUser(req.Context(), user))
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name string
		user *domain.User
		want error
	}{
		{"anonymous", nil, domain.ErrAuthRequired},
		{"regular user", alice, domain.ErrAdminRequired},
		{"admin", admin, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newGuardContext(tc.user, http.MethodGet, "/api/users", "")
			called := false
			err := RequireAdmin()(func(echo.Context) error {
				called = true
				return nil
			})(c)

			if tc.want == nil {
				if err != nil || !called {
					t.Fatalf("expected pass-through, got err=%v called=%v", err, called)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if called {
				t.Fatalf("next must not run")
			}
		})
	}
}

func TestRequireOwnership_PathParam(t *testing.T) {
	cases := []struct {
		name  string
		user  *domain.User
		param string
		want  error
	}{
		{"owner", alice, "u1", nil},
		{"someone else", alice, "u2", domain.ErrForbidden},
		{"admin on other", admin, "u2", nil},
		{"anonymous", nil, "u1", domain.ErrAuthRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newGuardContext(tc.user, http.MethodGet, "/api/users/"+tc.param+"/tasks", "")
			c.SetParamNames("userId")
			c.SetParamValues(tc.param)

			err := RequireOwnership("userId")(func(echo.Context) error { return nil })(c)
			if tc.want == nil && err != nil {
				t.Fatalf("expected pass, got %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRequireOwnership_BodyWinsAndIsRestored(t *testing.T) {
	body := `{"userId":"u1","title":"write report"}`
	c := newGuardContext(alice, http.MethodPost, "/x?userId=u2", body)
	c.SetParamNames("userId")
	c.SetParamValues("u2")

	var seen string
	err := RequireOwnership("userId")(func(c echo.Context) error {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		seen = string(raw)
		return nil
	})(c)

	if err != nil {
		t.Fatalf("body value should win over param and query: %v", err)
	}
	if seen != body {
		t.Fatalf("body not restored for handler: got %q", seen)
	}
}

func TestRequireOwnership_QueryFallback(t *testing.T) {
	c := newGuardContext(alice, http.MethodGet, "/x?userId=u1", "")
	if err := RequireOwnership("userId")(func(echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("expected query value to match, got %v", err)
	}

	c = newGuardContext(alice, http.MethodGet, "/x?userId=u3", "")
	if err := RequireOwnership("userId")(func(echo.Context) error { return nil })(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequireOwnership_MissingValue(t *testing.T) {
	c := newGuardContext(alice, http.MethodPost, "/x", `{"title":"no owner"}`)
	err := RequireOwnership("userId")(func(echo.Context) error { return nil })(c)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden when no owner value is present, got %v", err)
	}
}

func TestRequireOwnership_OversizedBody(t *testing.T) {
	body := `{"userId":"u1","notes":"` + strings.Repeat("x", maxOwnershipBody) + `"}`
	c := newGuardContext(alice, http.MethodPost, "/x", body)
	called := false
	err := RequireOwnership("userId")(func(echo.Context) error {
		called = true
		return nil
	})(c)

	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if called {
		t.Fatalf("next must not see a truncated body")
	}
}

func TestStringify(t *testing.T) {
	if got := stringify(float64(42)); got != "42" {
		t.Fatalf("stringify(42) = %q", got)
	}
	if got := stringify(nil); got != "" {
		t.Fatalf("stringify(nil) = %q", got)
	}
	if got := stringify("u1"); got != "u1" {
		t.Fatalf("stringify(\"u1\") = %q", got)
	}
}
