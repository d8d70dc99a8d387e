package api

import (
	"net"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/taskflow/taskflow-api/docs"
	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/api/middleware"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// Deps carries everything the HTTP layer needs. It is assembled by the
// composition root.
type Deps struct {
	Log zerolog.Logger

	Auth          ports.AuthService
	GoogleEnabled bool
	Tasks         ports.TaskService
	Projects      ports.ProjectService

	Authenticator *middleware.Authenticator
	AuthLimiter   ports.RateLimiter
	APILimiter    ports.RateLimiter

	Readiness *handler.HealthDependenciesHandler

	// Registry receives the HTTP metrics. nil means the default registry.
	Registry *prometheus.Registry

	// TrustedProxies are the peers allowed to name the client through
	// X-Forwarded-For. Empty means the peer address is the client.
	TrustedProxies []*net.IPNet
}

// maxBodySize caps every request body.
const maxBodySize = "1M"

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.IPExtractor = clientIPExtractor(d.TrustedProxies)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(maxBodySize))
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(prometheusMiddleware(d.Registry))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	userHandler := handler.NewUserHandler(d.Auth)
	taskHandler := handler.NewTaskHandler(d.Tasks)
	projectHandler := handler.NewProjectHandler(d.Projects)

	requireAuth := d.Authenticator.Required()
	optionalAuth := d.Authenticator.Optional()
	authLimit := middleware.RateLimit("auth", d.AuthLimiter, d.Log)

	api := e.Group("/api", middleware.RateLimit("api", d.APILimiter, d.Log))

	// --- Auth routes ---
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register, authLimit)
	auth.POST("/login", authHandler.Login, authLimit)
	if d.GoogleEnabled {
		auth.POST("/google", authHandler.Google, authLimit)
	}
	auth.POST("/logout", authHandler.Logout, requireAuth)
	auth.GET("/me", authHandler.Me, requireAuth)
	auth.PUT("/profile", authHandler.UpdateProfile, requireAuth)
	auth.PUT("/password", authHandler.ChangePassword, requireAuth)

	// --- Users ---
	users := api.Group("/users", requireAuth)
	users.GET("", userHandler.List, middleware.RequireAdmin())
	users.GET("/:userId/tasks", taskHandler.ListForUser, middleware.RequireOwnership("userId"))

	// --- Tasks ---
	tasks := api.Group("/tasks")
	tasks.GET("", taskHandler.List, requireAuth)
	tasks.POST("", taskHandler.Create, requireAuth)
	tasks.GET("/:id", taskHandler.Get, optionalAuth)
	tasks.PUT("/:id", taskHandler.Update, requireAuth)
	tasks.DELETE("/:id", taskHandler.Delete, requireAuth)

	// --- Projects ---
	projects := api.Group("/projects")
	projects.GET("", projectHandler.List, requireAuth)
	projects.POST("", projectHandler.Create, requireAuth)
	projects.GET("/:id", projectHandler.Get, optionalAuth)
	projects.PUT("/:id", projectHandler.Update, requireAuth)
	projects.DELETE("/:id", projectHandler.Delete, requireAuth)

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	if d.Readiness != nil {
		e.GET("/health/ready", d.Readiness.Readiness)
	}
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// clientIPExtractor decides what c.RealIP returns, and with it the rate limit
// key. Forwarding headers are ignored unless the peer is a trusted proxy.
func clientIPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range trusted {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

func prometheusMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{Namespace: "taskflow"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
