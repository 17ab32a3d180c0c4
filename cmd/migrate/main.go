package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	sentinelconfig "pb-sentinel/internal/sentinel/config"
	pkgconfig "pb-sentinel/pkg/config"
)

var configPath string

func databaseURL(db pkgconfig.Database) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.DBName, db.SSLMode)
}

func openMigrator() (*migrate.Migrate, error) {
	cfg, err := sentinelconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return migrate.New("file://migrations", databaseURL(cfg.Database))
}

// apply runs one migration step and treats an already-current schema as
// success.
func apply(step func(*migrate.Migrate) error, done string) error {
	m, err := openMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	switch err := step(m); {
	case err == nil:
		fmt.Println(done)
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("Schema already current, nothing to do.")
	default:
		return err
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the pb-sentinel database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return apply(func(m *migrate.Migrate) error { return m.Up() }, "Schema is up to date.")
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return apply(func(m *migrate.Migrate) error { return m.Steps(-1) }, "Rolled back one migration.")
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
