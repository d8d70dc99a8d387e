package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/api/authctx"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// currentUser returns the account attached by the auth middleware. Routes
// behind Authenticator.Required always have one; a missing user means the
// route was wired without it and is treated as unauthenticated.
func currentUser(c echo.Context) (*domain.User, error) {
	user, ok := authctx.User(c.Request().Context())
	if !ok {
		return nil, domain.ErrAuthRequired
	}
	return user, nil
}

// optionalUser returns the account attached by Authenticator.Optional, or nil.
func optionalUser(c echo.Context) *domain.User {
	user, _ := authctx.User(c.Request().Context())
	return user
}

// pagination is the paging block of every list response.
type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type listResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination pagination `json:"pagination"`
}

func newListResponse[T any](p *ports.Page[T]) listResponse[T] {
	return listResponse[T]{
		Data: p.Items,
		Pagination: pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages,
		},
	}
}

// pageParams reads page and limit from the query string. Malformed values
// fall back to the defaults applied by ports.NormalizePaging.
func pageParams(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	return page, limit
}

type messageResponse struct {
	Message string `json:"message"`
}
