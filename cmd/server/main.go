package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-agent/internal/app"
	"crypto-trading-agent/internal/bot"
	"crypto-trading-agent/internal/cache"
	"crypto-trading-agent/internal/config"
	"crypto-trading-agent/internal/db"
	"crypto-trading-agent/internal/handler"
	"crypto-trading-agent/pkg/logger"
	"crypto-trading-agent/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "crypto-trading-agent/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logger.New
	initTracerFunc         = tracing.InitTracer
	openPostgresFunc       = db.OpenPostgres
	openRedisFunc          = cache.Open
	buildAppFunc           = app.Build
	acquireLockFunc        = app.AcquireEngineLock
	newBotFunc             = bot.New
	startBotFunc           = func(b *bot.Bot, ctx context.Context) { go b.Start(ctx) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Crypto Trading Agent API
// @version         1.0
// @description     Paper trading agent combining technical indicators with social sentiment.

// @host      localhost:8080
// @BasePath  /
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
		ServiceName: tracing.DefaultServiceName,
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
	infra.Pool, err = openPostgresFunc(ctx, cfg.DatabaseURL, 10)
	if err != nil {
		lg.Fatal("failed to connect to postgres", zap.Error(err))
	}
	if infra.Pool != nil {
		defer infra.Pool.Close()
	} else {
		lg.Info("DATABASE_URL not set, using file ledger", zap.String("path", cfg.LedgerPath))
	}
	if cfg.RedisURL != "" {
		client, err := openRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			lg.Warn("redis unavailable, analysis cache is process local", zap.Error(err))
		} else {
			infra.Redis = client
			defer client.Close()
		}
	}

	release, err := acquireLockFunc(ctx, cfg, infra.Pool)
	if err != nil {
		lg.Fatal("ledger is owned by another engine", zap.Error(err))
	}
	defer release()

	a, err := buildAppFunc(ctx, cfg, tracer, lg, infra)
	if err != nil {
		lg.Fatal("failed to build agent", zap.Error(err))
	}

	if cfg.AgentAutostart {
		if err := a.Job.Start(ctx); err != nil {
			lg.Fatal("failed to start agent", zap.Error(err))
		}
	}
	defer a.Job.Stop()

	tg, err := newBotFunc(cfg.TelegramBotToken, tracer, lg, a.Portfolio)
	if err != nil {
		lg.Error("telegram bot disabled", zap.Error(err))
	}
	if tg != nil {
		tg.SetAnalyzer(a.Engine)
		tg.SetAgent(a.Job)
		startBotFunc(tg, ctx)
	}

	h := handler.New(tracer, a.Portfolio, a.Analyses)
	h.SetAnalyzer(a.Engine)
	h.SetAgent(a.Job)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(tracing.DefaultServiceName))
	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			lg.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	lg.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}

	lg.Info("server exiting")
}
