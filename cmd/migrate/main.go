package main

import (
	"context"

	"bandspace/pkg/config"
	"bandspace/pkg/db"
	"bandspace/pkg/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New("bandspace-migrate", cfg.LogLevel, cfg.AppEnv)
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations"
	}

	// Uses DIRECT_URL when set; poolers in transaction mode break migrate's locking.
	if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Sanity check the runtime connection. DSNs are never logged.
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("runtime db open failed")
	}
	pool.Close()

	log.Info().Str("path", cfg.MigrationsPath).Msg("migrations applied")
}
