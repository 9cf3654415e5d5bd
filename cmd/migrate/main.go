package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strconv"

	"crypto-trading-agent/internal/config"
	"crypto-trading-agent/internal/db"
	"crypto-trading-agent/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	openPostgresFunc = db.OpenPostgres
)

// withMigrator loads config, connects and hands a ready migrator to fn.
func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *migrator, log *zap.Logger) error) error {
	_ = loadEnvFunc()
	cfg, err := loadConfigFunc()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	ctx := cmd.Context()
	pool, err := openPostgresFunc(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m := &migrator{db: pool, migrations: migrations}
	if err := m.ensureTable(ctx); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return fn(ctx, m, log)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the trading agent postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *migrator, log *zap.Logger) error {
				applied, err := m.up(ctx)
				if err != nil {
					return err
				}
				log.Info("migrations up complete", zap.Int("applied", applied))
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the latest migrations, one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid down steps: %q", args[0])
				}
				steps = n
			}
			return withMigrator(cmd, func(ctx context.Context, m *migrator, log *zap.Logger) error {
				rolledBack, err := m.down(ctx, steps)
				if err != nil {
					return err
				}
				log.Info("migrations down complete", zap.Int("rolled_back", rolledBack))
				return nil
			})
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the latest applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *migrator, log *zap.Logger) error {
				v, name, err := m.current(ctx)
				if err != nil {
					return err
				}
				if v == 0 {
					log.Info("no migrations applied")
					return nil
				}
				log.Info("current version", zap.Int64("version", v), zap.String("name", name))
				return nil
			})
		},
	}

	root.AddCommand(up, down, version)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}
