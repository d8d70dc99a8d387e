// Command api serves the taskflow REST API.
//
// @title                       Taskflow API
// @version                     1.0
// @description                 Tasks and projects with password and Google sign-in.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/taskflow/taskflow-api/internal/api"
	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/api/middleware"
	"github.com/taskflow/taskflow-api/internal/core/ports"
	"github.com/taskflow/taskflow-api/internal/core/service"
	"github.com/taskflow/taskflow-api/internal/infrastructure/config"
	"github.com/taskflow/taskflow-api/internal/infrastructure/db/mongo"
	"github.com/taskflow/taskflow-api/internal/infrastructure/db/redis"
	"github.com/taskflow/taskflow-api/internal/infrastructure/oauth"
	"github.com/taskflow/taskflow-api/internal/infrastructure/queue"
	"github.com/taskflow/taskflow-api/internal/infrastructure/ratelimit"
	"github.com/taskflow/taskflow-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "taskflow-api",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	users := mongo.NewUserRepository(db)
	tasks := mongo.NewTaskRepository(db)
	projects := mongo.NewProjectRepository(db)
	authEvents := mongo.NewAuthEventRepository(db)
	if err := mongo.EnsureIndexes(ctx, users, tasks, projects, authEvents); err != nil {
		return err
	}

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	// --- Core ---
	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, time.Now)
	if err != nil {
		return err
	}
	creds := service.NewCredentialService(users, cfg.Auth.BcryptCost, time.Now, log)

	var resolver *service.OAuthResolver
	if cfg.OAuth.ClientID != "" {
		oc := oauth.Config{ClientID: cfg.OAuth.ClientID, JWKSURL: cfg.OAuth.JWKSURL}
		if cfg.OAuth.Issuer != "" {
			oc.Issuers = []string{cfg.OAuth.Issuer}
		}
		verifier, err := oauth.NewGoogleVerifier(ctx, oc)
		if err != nil {
			return err
		}
		resolver = service.NewOAuthResolver(verifier, users, time.Now, log)
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, authEvents, log)
	authService := service.NewAuthService(creds, tokens, resolver, dispatcher, log)

	// --- Rate limiting ---
	authLimiter, apiLimiter := newLimiters(ctx, cfg, rdb)

	// --- HTTP ---
	trusted, err := cfg.TrustedProxyRanges()
	if err != nil {
		return err
	}
	var redisClient goredis.UniversalClient
	if rdb != nil {
		redisClient = rdb
	}
	e := api.NewRouter(api.Deps{
		Log:            log,
		Auth:           authService,
		GoogleEnabled:  authService.GoogleEnabled(),
		Tasks:          service.NewTaskService(tasks, projects, log),
		Projects:       service.NewProjectService(projects, log),
		Authenticator:  middleware.NewAuthenticator(tokens, users, log),
		AuthLimiter:    authLimiter,
		APILimiter:     apiLimiter,
		Readiness:      handler.NewHealthDependenciesHandler(db, redisClient),
		TrustedProxies: trusted,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Str("rate_limit_store", cfg.RateLimit.Store).Msg("server listening")
	return serve(ctx, srv, ln, dispatcher, log)
}

// serve runs srv on ln and the audit workers until ctx is done. The workers
// are stopped only after in-flight requests have finished, so events those
// requests record are still written.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, dispatcher *queue.Dispatcher, log zerolog.Logger) error {
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopDispatch()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// newLimiters builds the auth and api limiters on the configured store.
func newLimiters(ctx context.Context, cfg *config.Config, rdb *goredis.Client) (ports.RateLimiter, ports.RateLimiter) {
	rl := cfg.RateLimit
	if rl.Store == config.StoreRedis {
		return redis.NewSlidingWindowLimiter(rdb, "auth", rl.AuthMax, rl.AuthWindow, time.Now),
			redis.NewSlidingWindowLimiter(rdb, "api", rl.APIMax, rl.APIWindow, time.Now)
	}

	auth := ratelimit.NewSlidingWindow(ratelimit.Config{Max: rl.AuthMax, Window: rl.AuthWindow}, time.Now)
	apiLimiter := ratelimit.NewSlidingWindow(ratelimit.Config{Max: rl.APIMax, Window: rl.APIWindow}, time.Now)
	auth.StartCleanup(ctx)
	apiLimiter.StartCleanup(ctx)
	return auth, apiLimiter
}
