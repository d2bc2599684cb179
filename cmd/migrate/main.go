package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"keerthanaapi/internal/config"
	"keerthanaapi/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the keerthanas database schema",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFiles()
		},
	}

	addUp(root)
	addDown(root)
	addStatus(root)
	addCreate(root)
	return root
}

func addUp(topLevel *cobra.Command) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *sql.DB, dir string) error {
				if err := goose.Up(db, dir); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				logging.Default().Info().Msg("migrations applied successfully")
				return nil
			})
		},
	})
}

func addDown(topLevel *cobra.Command) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *sql.DB, dir string) error {
				if err := goose.Down(db, dir); err != nil {
					return fmt.Errorf("roll back migration: %w", err)
				}
				logging.Default().Info().Msg("migration rolled back successfully")
				return nil
			})
		},
	})
}

func addStatus(topLevel *cobra.Command) {
	topLevel.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *sql.DB, dir string) error {
				return goose.Status(db, dir)
			})
		},
	})
}

func addCreate(topLevel *cobra.Command) {
	topLevel.AddCommand(&cobra.Command{
		Use:     "create NAME",
		Short:   "Create a new SQL migration in MIGRATIONS_DIR",
		Example: "  migrate create add_meaning_column",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goose.SetBaseFS(nil)
			if err := goose.Create(nil, migrationsDir(), args[0], "sql"); err != nil {
				return fmt.Errorf("create migration: %w", err)
			}
			return nil
		},
	})
}

func withDB(ctx context.Context, fn func(db *sql.DB, dir string) error) error {
	pool, err := pgxpool.New(ctx, databaseDSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, dir := migrationSource()
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return fn(db, dir)
}
