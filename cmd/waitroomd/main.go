// Command waitroomd runs the waitlist API server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waitroomxyz/api/internal/app"
	"github.com/waitroomxyz/api/internal/app/httpapi"
	"github.com/waitroomxyz/api/internal/app/ranking"
	"github.com/waitroomxyz/api/internal/app/storage/postgres"
	"github.com/waitroomxyz/api/internal/config"
	"github.com/waitroomxyz/api/internal/database"
	"github.com/waitroomxyz/api/internal/emailcheck"
	"github.com/waitroomxyz/api/internal/logging"
	"github.com/waitroomxyz/api/internal/metrics"
	"github.com/waitroomxyz/api/internal/middleware"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	log := logging.New("waitroomd")

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.WithError(err).Error("configuration failed")
		os.Exit(1)
	}

	var stores app.Stores
	if cfg.Database.URL != "" {
		db, err := database.Open(cfg.Database.URL)
		if err != nil {
			log.WithError(err).Error("database open failed")
			os.Exit(1)
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			log.WithError(err).Error("migrations failed")
			os.Exit(1)
		}
		store := postgres.New(db)
		stores = app.Stores{
			Users:     store,
			Projects:  store,
			Entries:   store,
			Referrals: store,
			Shares:    store,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("no database configured, using in-memory storage")
	}

	opts := app.Options{
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
		TokenTTL:     cfg.TokenTTL(),
		EmailChecker: emailcheck.New(cfg.Email.APIKey, cfg.Email.BaseURL, log.WithField("component", "emailcheck")),
		Metrics:      metrics.New(),
	}
	if cfg.Redis.Addr != "" {
		opts.RankCache = ranking.NewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.RedisTTL(), log.WithField("component", "ranking-cache"))
	}
	if cfg.Rescore.Enabled {
		opts.RescoreSchedule = cfg.Rescore.Schedule
	}

	application := app.New(stores, opts, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("startup failed")
		os.Exit(1)
	}

	limiter := middleware.NewRateLimiter(float64(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: application.Handler.Router(httpapi.RouterOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RateLimiter:    limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application shutdown failed")
	}
	log.Info("shutdown complete")
}
