package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"bandspace/internal/httpapi"
	"bandspace/internal/notification"
	"bandspace/internal/scheduler"
	"bandspace/pkg/config"
	"bandspace/pkg/db"
	"bandspace/pkg/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New("bandspace-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db open")
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	deps := httpapi.Dependencies{Cfg: cfg, DB: conn, Log: log}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, badges and logout revocation disabled")
			_ = rdb.Close()
		} else {
			deps.Redis = rdb
			defer rdb.Close()
		}
	}

	if cfg.Broker.URL != "" {
		pub, err := notification.DialBroker(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			log.Warn().Err(err).Msg("broker unavailable, notifications stay in-app only")
		} else {
			deps.Publisher = pub
			defer pub.Close()
		}
	}

	svc, err := httpapi.NewServices(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("wire services")
	}

	if cfg.Scheduler.Enabled {
		s := scheduler.New(svc.Jobs(), cfg.Scheduler.Interval, svc.Location, log.With().Str("component", "scheduler").Logger())
		go s.Start(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
