package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"crm-backend/internal/config"
	"crm-backend/migrations"
	"crm-backend/pkg/logger"
	"crm-backend/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 1})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	log.Info("applying schema")
	if _, err := db.ExecContext(ctx, migrations.Schema); err != nil {
		log.Error("apply schema failed", "err", err)
		os.Exit(1)
	}
	log.Info("schema applied")
}
