package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/api/authctx"
	"github.com/taskflow/taskflow-api/internal/core/domain"
)

const maxOwnershipBody = 1 << 20

// RequireAdmin lets only admin accounts through. It must run after
// Authenticator.Required.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := authctx.User(c.Request().Context())
			if !ok {
				return domain.ErrAuthRequired
			}
			if !user.IsAdmin() {
				return domain.ErrAdminRequired
			}
			return next(c)
		}
	}
}

// RequireOwnership lets a request through when the value named field equals
// the caller's id. The value is taken from the JSON body, then the path
// parameters, then the query string; the first non-empty one wins. Admins
// always pass.
func RequireOwnership(field string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := authctx.User(c.Request().Context())
			if !ok {
				return domain.ErrAuthRequired
			}
			if user.IsAdmin() {
				return next(c)
			}

			owner, err := ownerValue(c, field)
			if err != nil {
				return err
			}
			if owner == "" || owner != user.ID {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

func ownerValue(c echo.Context, field string) (string, error) {
	v, err := bodyField(c, field)
	if err != nil || v != "" {
		return v, err
	}
	if v := c.Param(field); v != "" {
		return v, nil
	}
	return c.QueryParam(field), nil
}

// bodyField reads field from a JSON object body and restores the body for
// the next handler. Non-JSON and non-object bodies yield "". Bodies over
// maxOwnershipBody are rejected.
func bodyField(c echo.Context, field string) (string, error) {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return "", nil
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, maxOwnershipBody+1))
	if err != nil {
		return "", domain.Validation("could not read request body")
	}
	if len(raw) > maxOwnershipBody {
		return "", domain.Validation("request body too large")
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))

	var obj map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return "", nil
	}
	return stringify(obj[field]), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
