package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"crypto-trading-agent/internal/app"
	"crypto-trading-agent/internal/cache"
	"crypto-trading-agent/internal/config"
	"crypto-trading-agent/internal/db"
	"crypto-trading-agent/internal/engine"
	"crypto-trading-agent/pkg/logger"
	"crypto-trading-agent/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logger.New
	initTracerFunc   = tracing.InitTracer
	openPostgresFunc = db.OpenPostgres
	openRedisFunc    = cache.Open
	buildAppFunc     = app.Build
	acquireLockFunc  = app.AcquireEngineLock
)

type session struct {
	app     *app.App
	logger  *zap.Logger
	closers []func()
}

func (r *session) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// setup builds the app. An exclusive session first takes the engine lock,
// so a running server and this process never apply trades to one ledger.
func setup(ctx context.Context, exclusive bool) (*session, error) {
	_ = loadEnvFunc()
	cfg, err := loadConfigFunc()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lg, err := newLoggerFunc(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, err
	}
	rt := &session{logger: lg}
	rt.closers = append(rt.closers, func() { _ = lg.Sync() })

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: tracing.DefaultServiceName + "-cli",
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = tp.Shutdown(context.Background()) })

	var infra app.Infra
	if infra.Pool, err = openPostgresFunc(ctx, cfg.DatabaseURL, 4); err != nil {
		rt.close()
		return nil, err
	}
	if infra.Pool != nil {
		rt.closers = append(rt.closers, infra.Pool.Close)
	}
	if cfg.RedisURL != "" {
		if client, err := openRedisFunc(ctx, cfg.RedisURL); err != nil {
			lg.Warn("redis unavailable, analyses stay local", zap.Error(err))
		} else {
			infra.Redis = client
			rt.closers = append(rt.closers, func() { _ = client.Close() })
		}
	}

	if exclusive {
		release, err := acquireLockFunc(ctx, cfg, infra.Pool)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, release)
	}

	if rt.app, err = buildAppFunc(ctx, cfg, tracer, lg, infra); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Run the crypto trading agent from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	once := &cobra.Command{
		Use:   "once [SYMBOL...]",
		Short: "Run one full cycle and apply its decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.close()

			in := engine.CycleInput{}
			for _, a := range args {
				in.Assets = append(in.Assets, strings.ToUpper(a))
			}
			result := rt.app.Engine.RunCycle(cmd.Context(), in)
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"cycle_at":  result.CycleAt,
				"decisions": result.Decisions,
				"errors":    result.ErrorStrings(),
				"warnings":  result.Warnings,
				"cancelled": result.Cancelled,
			}); err != nil {
				return err
			}
			if len(result.Analyses) == 0 && len(result.Errors) > 0 {
				return fmt.Errorf("cycle failed for every asset")
			}
			return nil
		},
	}

	analyze := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Analyze one asset without trading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.close()

			analysis, warnings, err := rt.app.Engine.AnalyzeAsset(cmd.Context(), strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"analysis": analysis, "warnings": warnings})
		},
	}

	portfolio := &cobra.Command{
		Use:   "portfolio",
		Short: "Print balances, open positions and the trade summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.close()
			return writeJSON(cmd.OutOrStdout(), rt.app.Portfolio.Portfolio(cmd.Context()))
		},
	}

	root.AddCommand(once, analyze, portfolio)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		stop()
		os.Exit(1)
	}
}
