package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
)

type migrator interface {
	Up() error
	Down() error
	Drop() error
	Steps(n int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

type options struct {
	configPath    string
	migrationsDir string
	open          func(dir, dsn string) (migrator, error)
}

func main() {
	if err := newRootCmd(&options{open: openMigrator}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations for the employer onboarding service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	root.PersistentFlags().StringVar(&opts.migrationsDir, "dir", "assets/migrations", "directory containing migration files")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.run(func(m migrator) error { return ignoreNoChange(m.Up()) }, "up")
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.run(func(m migrator) error { return ignoreNoChange(m.Down()) }, "down")
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (negative N rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
				}
				return opts.run(func(m migrator) error { return ignoreNoChange(m.Steps(n)) }, "steps")
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop everything in the database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.run(func(m migrator) error { return m.Drop() }, "drop")
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.run(func(m migrator) error {
					version, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						cmd.Println("no migration applied")
						return nil
					}
					if err != nil {
						return err
					}
					cmd.Printf("version=%d dirty=%t\n", version, dirty)
					return nil
				}, "version")
			},
		},
	)
	return root
}

func (o *options) run(action func(migrator) error, name string) error {
	cfg, err := config.Load(effectiveConfigPath(o.configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m, err := o.open(o.migrationsDir, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := action(m); err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	log.Printf("migration %s completed", name)
	return nil
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func openMigrator(dir, dsn string) (migrator, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
