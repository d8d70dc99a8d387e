package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/api/authctx"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// UserFinder loads the account a token was issued for.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Authenticator resolves the bearer token of a request to an active user.
type Authenticator struct {
	tokens ports.TokenVerifier
	users  UserFinder
	log    zerolog.Logger
}

func NewAuthenticator(tokens ports.TokenVerifier, users UserFinder, log zerolog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// Required rejects the request unless it carries a valid token for an
// existing, active account. The account is attached to the request context.
func (a *Authenticator) Required() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.authenticate(c)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(authctx.WithUser(c.Request().Context(), user)))
			return next(c)
		}
	}
}

// Optional attaches the account when the request authenticates and otherwise
// lets the request through anonymously.
func (a *Authenticator) Optional() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.authenticate(c)
			if err == nil {
				c.SetRequest(c.Request().WithContext(authctx.WithUser(c.Request().Context(), user)))
			} else if domain.IsKind(err, domain.KindDependency) {
				a.log.Warn().Err(err).Msg("optional auth skipped")
			}
			return next(c)
		}
	}
}

func (a *Authenticator) authenticate(c echo.Context) (*domain.User, error) {
	token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	userID, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindByID(c.Request().Context(), userID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}
	return user, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
