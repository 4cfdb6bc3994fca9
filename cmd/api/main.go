package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"orgctl/internal/audit"
	"orgctl/internal/auth"
	"orgctl/internal/config"
	"orgctl/internal/directory"
	"orgctl/internal/httpapi"
	"orgctl/internal/migrate"
	"orgctl/internal/obs"
	"orgctl/internal/org"
)

var version = "0.3.1"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		obs.InitLogger("info", "json")
		obs.Log().Fatal().Err(err).Msg("load config")
	}

	obs.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	obs.Init()

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		obs.Log().Fatal().Err(err).Msg("open db")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	if err := migrate.NewManager(db, cfg.Database.MigrationsDir).Up(startCtx); err != nil {
		obs.Log().Fatal().Err(err).Msg("apply migrations")
	}

	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		obs.Log().Fatal().Err(err).Msg("init token service")
	}

	rec := audit.NewRecorder()
	orgs := org.NewService(db, rec)
	users := directory.NewService(db, rec)
	resolver := auth.NewService(db, orgs, rec, tokens)

	if cfg.Bootstrap.SuperAdminEmail != "" {
		if err := resolver.SeedSuperAdmin(startCtx, cfg.Bootstrap.SuperAdminEmail, cfg.Bootstrap.SuperAdminPassword); err != nil {
			obs.Log().Fatal().Err(err).Msg("seed super admin")
		}
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, resolver, orgs, users, cfg.RateLimit, version)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	obs.Log().Info().Str("version", version).Str("addr", srv.Addr).Msg("starting orgctl-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Log().Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Log().Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	obs.Log().Info().Msg("stopped")
}
