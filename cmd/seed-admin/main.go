package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"crm-backend/internal/audit"
	"crm-backend/internal/config"
	"crm-backend/internal/users"
	"crm-backend/pkg/logger"
	"crm-backend/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// seed-admin creates the administrator account if it does not exist yet.
// Running it again is a no-op.
func main() {
	in := users.DefaultAdmin
	flag.StringVar(&in.Email, "email", in.Email, "admin email")
	flag.StringVar(&in.Name, "name", in.Name, "admin display name")
	flag.StringVar(&in.Password, "password", in.Password, "admin password (min 8 characters)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	if cfg.IsProduction() && in.Password == users.DefaultAdmin.Password {
		log.Error("refusing to seed the default admin password in production; pass -password")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := users.NewService(users.NewPostgresRepo(db), audit.NewService(audit.NewPostgresRepo(db)))
	u, created, err := svc.EnsureUser(ctx, in)
	if err != nil {
		log.Error("seed admin failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", u.Email, "user_id", u.ID)
		return
	}
	log.Info("admin user already exists", "email", u.Email, "user_id", u.ID, "role", u.Role)
}
