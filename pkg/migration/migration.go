// Package migration applies the embedded schema with golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers pgx5://
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/deals-backend/migrations"
)

// DriverURL rewrites a postgres:// or postgresql:// URL to the pgx5:// scheme
// the migrate driver is registered under.
func DriverURL(databaseURL string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest, nil
		}
	}
	if strings.HasPrefix(databaseURL, "pgx5://") {
		return databaseURL, nil
	}
	return "", fmt.Errorf("unsupported database url scheme: %q", databaseURL)
}

// New returns a migrator reading the embedded SQL files.
func New(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	url, err := DriverURL(databaseURL)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func Up(databaseURL string) error {
	m, err := New(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	return ignoreNoChange(m.Up())
}

// MigrateCommand builds the migrate CLI: up, down, version and force.
func MigrateCommand(databaseURL string) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the deals database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "up [N]",
		Short: "Apply all or N pending migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(databaseURL, func(m *migrate.Migrate) error {
				if len(args) == 0 {
					return ignoreNoChange(m.Up())
				}
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				return ignoreNoChange(m.Steps(n))
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down N",
		Short: "Roll back N migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			return withMigrator(databaseURL, func(m *migrate.Migrate) error {
				return ignoreNoChange(m.Steps(-n))
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(databaseURL, func(m *migrate.Migrate) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					cmd.Println("no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				cmd.Printf("version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "force V",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(databaseURL, func(m *migrate.Migrate) error {
				return m.Force(v)
			})
		},
	})

	return root
}

func withMigrator(databaseURL string, fn func(m *migrate.Migrate) error) error {
	m, err := New(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	return fn(m)
}

func parseSteps(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step count %q: want a positive integer", arg)
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("schema already up to date")
		return nil
	}
	return err
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn().AnErr("source_error", srcErr).AnErr("database_error", dbErr).Msg("closing migrator")
	}
}

// migrateLogger forwards golang-migrate output to zerolog.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrateLogger) Verbose() bool {
	return false
}
