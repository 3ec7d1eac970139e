// Package server is the composition root: it opens the stores, builds the
// services and handlers, and mounts them on a chi router.
//
//	config → store (sqlite | mongo) → services → handlers → routes
//
// Each layer receives only what it needs: services get repository
// interfaces, handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/hypeshelf/internal/auth"
	"github.com/sakif/hypeshelf/internal/config"
	"github.com/sakif/hypeshelf/internal/handler"
	"github.com/sakif/hypeshelf/internal/metrics"
	"github.com/sakif/hypeshelf/internal/middleware"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository"
	mongoRepo "github.com/sakif/hypeshelf/internal/repository/mongo"
	sqliteRepo "github.com/sakif/hypeshelf/internal/repository/sqlite"
	"github.com/sakif/hypeshelf/internal/service"
	"github.com/sakif/hypeshelf/internal/webhook"
)

// rateLimitWindow is the fixed window of the Redis-backed limiter.
const rateLimitWindow = time.Minute

// store is what both storage drivers provide.
type store interface {
	repository.UserRepository
	repository.RecommendationRepository
	Ping() error
	Close() error
}

// Server owns the router and every resource that must be closed on
// shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   store
	redis   *redis.Client // nil when REDIS_ADDR is unset
	closers []func() error
}

// New connects to the configured backends and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   st,
		closers: []func() error{st.Close},
	}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, s.redis.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.redis.Ping(pingCtx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	var provider *auth.Provider
	if cfg.OIDC.Issuer != "" {
		provider, err = auth.NewProvider(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			s.Close()
			return nil, err
		}
	} else {
		logger.Warn("OIDC_ISSUER not set: login and Bearer ID tokens are disabled")
	}

	identity := service.NewIdentityService(s.store, logger)
	if err := identity.PromoteAll(ctx, cfg.Admin.ExternalIDs); err != nil {
		s.Close()
		return nil, fmt.Errorf("bootstrapping admins: %w", err)
	}

	if err := s.setupRoutes(provider, identity); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Promote grants admin to one synced identity without starting the HTTP
// server.
func Promote(ctx context.Context, cfg *config.Config, logger *slog.Logger, externalID string) (*model.User, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return service.NewIdentityService(st, logger).Promote(ctx, externalID)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		st, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			return nil, fmt.Errorf("opening mongo store: %w", err)
		}
		return st, nil
	default:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db, nil
	}
}

// setupRoutes wires handlers to routes.
//
//	GET    /healthz                               store reachability
//	GET    /metrics                               Prometheus
//	POST   /webhooks/identity                     identity sync (Svix-signed)
//	GET    /auth/login, /auth/callback            OIDC login
//	POST   /auth/logout
//	GET    /api/me                                optional auth
//	GET    /api/recommendations                   optional auth
//	GET    /api/recommendations/mine              auth required
//	POST   /api/recommendations                   auth required
//	DELETE /api/recommendations/{id}              auth required
//	POST   /api/recommendations/{id}/staff-pick   auth required
//
// The request logger runs after the auth middleware on /api so log lines
// carry the caller's subject.
func (s *Server) setupRoutes(provider *auth.Provider, identity *service.IdentityService) error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return err
	}
	var idTokens auth.IDTokenVerifier
	var login handler.LoginProvider
	if provider != nil {
		idTokens = provider.Verifier()
		login = provider
	}
	authn := auth.NewAuthenticator(tokens, idTokens)

	recommendations := service.NewRecommendationService(s.store, s.store, s.logger)
	sessions := service.NewAuthService(tokens, identity, s.logger)

	recH := handler.NewRecommendationHandler(recommendations, s.logger)
	authH := handler.NewAuthHandler(login, sessions, identity, cfg.Session.SecureCookie, s.logger)
	healthH := handler.NewHealthHandler(s.store, s.logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	s.router.Use(chimiddleware.RequestID)
	// Forwarded headers are client-controlled unless a proxy rewrites them.
	if cfg.Server.TrustProxyHeaders {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", healthH.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.Webhook.Secret != "" {
		verifier, err := webhook.NewVerifier(cfg.Webhook.Secret)
		if err != nil {
			return err
		}
		hookH := handler.NewWebhookHandler(verifier, webhook.NewReplayGuard(s.redis, cfg.Webhook.ReplayTTL), identity, s.logger)
		s.router.With(middleware.Logger(s.logger)).Post("/webhooks/identity", hookH.HandleIdentityEvent)
	} else {
		s.logger.Warn("WEBHOOK_SECRET not set: identity sync endpoint is disabled")
	}

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Logger(s.logger))
		r.Get("/login", authH.HandleLogin)
		r.Get("/callback", authH.HandleCallback)
		r.Post("/logout", authH.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(authn))
		r.Use(middleware.Logger(s.logger))
		r.Use(middleware.RedisRateLimit(s.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, rateLimitWindow))

		r.Get("/me", authH.HandleMe)
		r.Get("/recommendations", recH.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(authn))
			r.Get("/recommendations/mine", recH.HandleListMine)
			r.Post("/recommendations", recH.HandleCreate)
			r.Delete("/recommendations/{id}", recH.HandleDelete)
			r.Post("/recommendations/{id}/staff-pick", recH.HandleStaffPick)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases every backend connection.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to the configured shutdown timeout and closes the backends.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("store", s.config.Store.Driver),
			slog.Bool("redis", s.redis != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
