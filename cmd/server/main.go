package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/linkbio/internal/config"
	"github.com/iliyamo/linkbio/internal/database"
	"github.com/iliyamo/linkbio/internal/ratelimit"
	"github.com/iliyamo/linkbio/internal/router"
	"github.com/iliyamo/linkbio/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment may already be set

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; using in-memory rate limiter and no response cache")
	} else {
		defer rdb.Close()
	}

	rlCfg := config.LoadRateLimitConfig()
	var limiter ratelimit.Limiter
	switch {
	case !rlCfg.Enabled:
		logger.Warn("rate limiting disabled")
	case rlCfg.Backend == "redis" && rdb != nil:
		limiter = ratelimit.NewRedisLimiter(rdb, rlCfg.Prefix)
	default:
		limiter = ratelimit.NewMemoryLimiter(rlCfg.SweepThreshold)
	}

	cacheCfg := config.LoadCacheConfig()
	var revalidators service.MultiRevalidator
	if cfg.PublicSiteURL != "" {
		revalidators = append(revalidators, service.NewHTTPRevalidator(cfg.PublicSiteURL, cfg.RevalidateToken))
	}
	if rdb != nil && cacheCfg.Enabled {
		revalidators = append(revalidators, &service.CachePurger{RDB: rdb, Prefix: cacheCfg.Prefix})
	}

	sender := service.EmailSender{Mailer: service.LogMailer{Logger: logger}, AdminURL: cfg.AdminURL}
	var emails service.EmailQueue = service.DirectEmailQueue{Handler: sender}
	if cfg.AMQPURL != "" {
		emails = service.AMQPEmailQueue{URL: cfg.AMQPURL}
	}

	deps := router.Deps{
		DB:           db,
		Config:       cfg,
		Cache:        cacheCfg,
		Redis:        rdb,
		Limiter:      limiter,
		Emails:       emails,
		EmailHandler: sender,
		Logger:       logger,
	}
	if len(revalidators) > 0 {
		deps.Revalidator = revalidators
	}
	e, sessions := router.New(deps)

	go sessions.RunPurge(ctx, time.Hour)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	logger.Info("server stopped")
}
