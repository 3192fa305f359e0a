package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"elms/internal/domain/access"
	"elms/internal/domain/audit"
	"elms/internal/domain/auth"
	"elms/internal/domain/directory"
	"elms/internal/domain/leave"
	"elms/internal/domain/notifications"
	"elms/internal/domain/reports"
	"elms/internal/domain/settings"
	"elms/internal/platform/cache"
	"elms/internal/platform/config"
	"elms/internal/platform/crypto"
	"elms/internal/platform/email"
	"elms/internal/platform/events"
	"elms/internal/platform/jobs"
	"elms/internal/platform/metrics"
	"elms/internal/platform/storage"
	"elms/internal/transport/http/api"
	audithandler "elms/internal/transport/http/handlers/audit"
	authhandler "elms/internal/transport/http/handlers/auth"
	directoryhandler "elms/internal/transport/http/handlers/directory"
	jobshandler "elms/internal/transport/http/handlers/jobs"
	leavehandler "elms/internal/transport/http/handlers/leave"
	notificationshandler "elms/internal/transport/http/handlers/notifications"
	reportshandler "elms/internal/transport/http/handlers/reports"
	settingshandler "elms/internal/transport/http/handlers/settings"
	"elms/internal/transport/http/middleware"
)

const (
	shutdownTimeout   = 15 * time.Second
	retentionInterval = 24 * time.Hour
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Log     *zap.Logger
	closers []io.Closer
}

// New wires stores, services and routes on top of an open pool.
func New(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, log *zap.Logger) (*App, error) {
	enforcer, err := access.NewEnforcer(access.DefaultCapabilities)
	if err != nil {
		return nil, fmt.Errorf("capability table: %w", err)
	}
	box, err := crypto.NewBox(cfg.DataEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	attachments, err := storage.NewAttachments(cfg.AttachmentDir, log)
	if err != nil {
		return nil, fmt.Errorf("attachment store: %w", err)
	}

	app := &App{Config: cfg, DB: pool, Log: log}

	var blacklist cache.TokenBlacklist = cache.NoopBlacklist{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb)
		blacklist = cache.NewRedisBlacklist(rdb)
	} else {
		log.Warn("redis not configured, logout cannot revoke tokens server side")
	}

	writer := events.NewKafkaWriter(cfg.KafkaBrokers, log)
	if closer, ok := writer.(io.Closer); ok {
		app.closers = append(app.closers, closer)
	}

	collector := metrics.New()
	auditStore := audit.NewStore(pool)
	settingsSvc := settings.NewService(pool, log)
	mailer := notifications.NewLeaveMailer(email.New(cfg, log), cfg.EmailFrom)

	authSvc := auth.NewService(auth.NewStore(pool), auditStore, box, blacklist, cfg.JWTSecret, cfg.JWTTTL, log)
	leaveSvc := leave.NewService(leave.NewRepo(pool, settingsSvc), enforcer, mailer, attachments, log,
		leave.WithRecorder(collector),
		leave.WithTopic(events.Topic(cfg.KafkaTopicPrefix, "leave")),
	)
	directorySvc := directory.NewService(directory.NewRepo(pool), enforcer, log)
	reportsSvc := reports.NewService(reports.NewStore(pool), enforcer, log)
	notificationsSvc := notifications.New(notifications.NewStore(pool))

	app.Jobs = jobs.New(jobs.NewRunStore(pool), log)
	app.Jobs.RegisterOutboxRelay(events.NewRelay(events.NewOutboxStore(pool), writer, log))
	app.Jobs.RegisterRetention(pool, jobs.DefaultRetention(), nil)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log, collector))
	router.Use(middleware.Recoverer(log))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(authSvc))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.With(middleware.RequireCapability(enforcer, access.CapViewReports)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), api.RequestIDFrom(r))
		})
	}

	limiterOpts := []middleware.RateLimitOption{middleware.WithLogger(log)}
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute, limiterOpts...))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute, limiterOpts...))

		authhandler.NewHandler(authSvc, log).RegisterRoutes(r)
		leavehandler.NewHandler(leaveSvc, enforcer, settingsSvc, log).RegisterRoutes(r)
		directoryhandler.NewHandler(directorySvc, enforcer, settingsSvc, log).RegisterRoutes(r)
		settingshandler.NewHandler(settingsSvc, enforcer, log).RegisterRoutes(r)
		notificationshandler.NewHandler(notificationsSvc, settingsSvc, log).RegisterRoutes(r)
		audithandler.NewHandler(auditStore, enforcer, settingsSvc, log).RegisterRoutes(r)
		reportshandler.NewHandler(reportsSvc, enforcer, settingsSvc, log).RegisterRoutes(r)
		jobshandler.NewHandler(app.Jobs, reportsSvc, enforcer, log).RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	a.Jobs.Start(gctx, map[string]time.Duration{
		jobs.JobOutboxRelay: a.Config.OutboxInterval,
		jobs.JobRetention:   retentionInterval,
	})

	g.Go(func() error {
		a.Log.Info("server listening", zap.String("addr", a.Config.Addr), zap.String("env", a.Config.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Close()
	return err
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
