package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/auth"
	"crm-backend/internal/config"
	"crm-backend/internal/events"
	"crm-backend/internal/httpapi"
	"crm-backend/internal/leads"
	"crm-backend/internal/reporting"
	"crm-backend/internal/users"
	"crm-backend/pkg/logger"
	"crm-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	usersSvc := users.NewService(users.NewPostgresRepo(db), auditSvc)

	deps := leads.Deps{
		Users:   usersSvc,
		Audit:   auditSvc,
		LockTTL: cfg.Ingest.LockTTL,
	}

	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		deps.Locker = utils.NewRedisLocker(rdb)
	} else {
		log.Info("redis disabled, csv ingestion runs without a cross-replica lock")
	}

	if cfg.AMQP.URL != "" {
		pub, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			// Events are best-effort; the API serves without them.
			log.Warn("amqp unavailable, lead events disabled", "err", err)
		} else {
			defer pub.Close()
			deps.Events = pub
		}
	}

	h := httpapi.Handlers{
		Auth:      authManager,
		Users:     usersSvc,
		Leads:     leads.NewService(leads.NewPostgresRepo(db), deps),
		Reporting: reporting.NewService(reporting.NewPostgresRepo(db)),
		Health: func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		},
		AllowDevLogin:  cfg.AllowsDevLogin(),
		MaxUploadBytes: cfg.Ingest.MaxBytes,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, log, h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
