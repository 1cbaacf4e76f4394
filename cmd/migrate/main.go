package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/deals-backend/internal/config"
	"github.com/fairyhunter13/deals-backend/pkg/migration"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := migration.MigrateCommand(cfg.DB.URL()).Execute(); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
