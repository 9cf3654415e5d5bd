package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"crypto-trading-agent/internal/app"
	"crypto-trading-agent/internal/cache"
	"crypto-trading-agent/internal/config"
	"crypto-trading-agent/internal/db"
	"crypto-trading-agent/internal/tui"
	"crypto-trading-agent/pkg/logger"
	"crypto-trading-agent/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	newLoggerFunc     = logger.New
	initTracerFunc    = tracing.InitTracer
	openPostgresFunc  = db.OpenPostgres
	openRedisFunc     = cache.Open
	newDashboardFunc  = app.NewDashboard
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

// parseAllowlist accepts SHA256 fingerprints or authorized_keys lines.
func parseAllowlist(entries []string) (map[string]struct{}, error) {
	allowed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "SHA256:") {
			allowed[entry] = struct{}{}
			continue
		}
		key, _, _, _, err := gossh.ParseAuthorizedKey([]byte(entry))
		if err != nil {
			return nil, fmt.Errorf("parse allowed key %q: %w", entry, err)
		}
		allowed[gossh.FingerprintSHA256(key)] = struct{}{}
	}
	return allowed, nil
}

func main() {
	_ = loadEnvFunc()
	cfg, err := loadConfigFunc()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg, err := newLoggerFunc(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: tracing.DefaultServiceName + "-ssh",
	})
	if err != nil {
		lg.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			lg.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	var infra app.Infra
	infra.Pool, err = openPostgresFunc(ctx, cfg.DatabaseURL, 4)
	if err != nil {
		lg.Fatal("failed to connect to postgres", zap.Error(err))
	}
	if infra.Pool != nil {
		defer infra.Pool.Close()
	}
	if cfg.RedisURL != "" {
		if client, err := openRedisFunc(ctx, cfg.RedisURL); err != nil {
			lg.Warn("redis unavailable, analysis view disabled", zap.Error(err))
		} else {
			infra.Redis = client
			defer client.Close()
		}
	}

	portfolio, analyses, err := newDashboardFunc(ctx, cfg, tracer, lg, infra)
	if err != nil {
		lg.Fatal("failed to open dashboard sources", zap.Error(err))
	}

	allowed, err := parseAllowlist(cfg.SSHAllowedKeys)
	if err != nil {
		lg.Fatal("invalid SSH_ALLOWED_KEYS", zap.Error(err))
	}
	if len(allowed) == 0 {
		lg.Warn("SSH_ALLOWED_KEYS is empty, every login will be denied")
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.SSHPort)
	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(sctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			if _, ok := allowed[fingerprint]; !ok {
				lg.Info("ssh auth denied", zap.String("user", sctx.User()), zap.String("fingerprint", fingerprint))
				return false
			}
			lg.Info("ssh auth accepted", zap.String("user", sctx.User()), zap.String("fingerprint", fingerprint))
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model := tui.NewAppModel(tui.Services{
					Portfolio: portfolio,
					Analyses:  analyses,
					Assets:    cfg.Assets,
					Username:  s.User(),
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)
				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		lg.Fatal("failed to create SSH server", zap.Error(err))
	}

	if srv != nil {
		go func() {
			lg.Info("ssh server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil {
				lg.Info("ssh server stopped", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	lg.Info("shutting down ssh server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("ssh server shutdown error", zap.Error(err))
		}
	}
	lg.Info("ssh server exited")
}
