package handler

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/api/metrics"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// profileFields is the allow-list accepted by PUT /api/auth/profile.
var profileFields = []string{"firstName", "lastName", "username"}

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Username  string `json:"username"  validate:"required,min=3,max=50"`
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"max=50"`
	LastName  string `json:"lastName"  validate:"max=50"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleRequest struct {
	Token string `json:"token" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,min=6"`
}

type authResponse struct {
	Token string            `json:"token,omitempty"`
	User  domain.PublicUser `json:"user"`
}

// Register creates a new password account and signs it in.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		countAttempt(metrics.MethodRegister, err)
		return err
	}

	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	countAttempt(metrics.MethodRegister, err)
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.Inc()
	return c.JSON(http.StatusCreated, authResponse{Token: res.Token, User: res.User.Public()})
}

// Login authenticates with email and password and returns a JWT.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		countAttempt(metrics.MethodPassword, err)
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	countAttempt(metrics.MethodPassword, err)
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.Inc()
	return c.JSON(http.StatusOK, authResponse{Token: res.Token, User: res.User.Public()})
}

// Google exchanges a Google ID token for a session token, creating or linking
// the account on first use.
//
// @Summary      Sign in with Google
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      googleRequest  true  "Google ID token"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/auth/google [post]
func (h *AuthHandler) Google(c echo.Context) error {
	var req googleRequest
	if err := bindAndValidate(c, &req); err != nil {
		countAttempt(metrics.MethodGoogle, err)
		return err
	}

	res, err := h.authService.LoginWithGoogle(c.Request().Context(), req.Token)
	countAttempt(metrics.MethodGoogle, err)
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.Inc()
	return c.JSON(http.StatusOK, authResponse{Token: res.Token, User: res.User.Public()})
}

// Logout is client-side only: tokens are stateless and stay valid until they
// expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Me returns the authenticated account.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]domain.PublicUser
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]domain.PublicUser{"user": user.Public()})
}

// UpdateProfile changes firstName, lastName or username. Any other key in the
// body is rejected.
//
// @Summary      Update profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      map[string]string  true  "firstName, lastName, username"
// @Success      200   {object}  map[string]domain.PublicUser
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.Echo().JSONSerializer.Deserialize(c, &body); err != nil {
		return domain.Validation("invalid payload")
	}
	changes, err := profileChanges(body)
	if err != nil {
		return err
	}

	updated, err := h.authService.UpdateProfile(c.Request().Context(), user, changes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]domain.PublicUser{"user": updated.Public()})
}

// ChangePassword replaces the password after checking the current one.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/password [put]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.Request().Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

// profileChanges maps an allow-listed JSON object onto ProfileChanges.
func profileChanges(body map[string]any) (ports.ProfileChanges, error) {
	var unknown []string
	for k := range body {
		if !slices.Contains(profileFields, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return ports.ProfileChanges{}, domain.Validation("fields not allowed: " + strings.Join(unknown, ", "))
	}

	var changes ports.ProfileChanges
	for k, v := range body {
		s, ok := v.(string)
		if !ok {
			return ports.ProfileChanges{}, domain.Validation(fmt.Sprintf("%s must be a string", k))
		}
		switch k {
		case "firstName":
			changes.FirstName = &s
		case "lastName":
			changes.LastName = &s
		case "username":
			changes.Username = &s
		}
	}
	return changes, nil
}

// countAttempt records the outcome of a sign-in or registration attempt.
func countAttempt(method string, err error) {
	result := metrics.ResultSuccess
	switch domain.KindOf(err) {
	case "":
		if err != nil {
			result = metrics.ResultError
		}
	case domain.KindValidation, domain.KindAuthentication:
		result = metrics.ResultFailure
	case domain.KindConflict, domain.KindAuthorization:
		result = metrics.ResultRejected
	default:
		result = metrics.ResultError
	}
	metrics.AuthAttemptsTotal.WithLabelValues(method, result).Inc()
}
