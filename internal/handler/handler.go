package handler

import (
	"context"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/engine"
	"crypto-trading-agent/internal/job"
	"crypto-trading-agent/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type PortfolioReader interface {
	Portfolio(ctx context.Context) service.PortfolioView
	Trades(ctx context.Context) []domain.TradeRecord
}

type AnalysisReader interface {
	Get(ctx context.Context, symbol string) (domain.AssetAnalysis, bool, error)
	Latest() []domain.AssetAnalysis
}

type Analyzer interface {
	AnalyzeAsset(ctx context.Context, symbol string) (domain.AssetAnalysis, []string, error)
}

type AgentController interface {
	RunNow(ctx context.Context) (engine.CycleResult, error)
	Resume() error
	Stop()
	Status() job.Status
}

type Handler struct {
	tracer    trace.Tracer
	portfolio PortfolioReader
	analyses  AnalysisReader
	analyzer  Analyzer
	agent     AgentController
}

func New(tracer trace.Tracer, portfolio PortfolioReader, analyses AnalysisReader) *Handler {
	return &Handler{tracer: tracer, portfolio: portfolio, analyses: analyses}
}

func (h *Handler) SetAnalyzer(a Analyzer)         { h.analyzer = a }
func (h *Handler) SetAgent(agent AgentController) { h.agent = agent }

// RegisterRoutes mounts the API. Reads are public; endpoints that trigger
// work or change agent state require apiKey when it is set.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/positions", h.GetPositions)
	api.GET("/trades", h.GetTrades)
	api.GET("/portfolio", h.GetPortfolio)
	api.GET("/analysis", h.ListAnalyses)
	api.GET("/analysis/:symbol", h.GetAnalysis)
	api.GET("/status", h.GetStatus)

	protected := api.Group("", APIKeyAuth(apiKey))
	protected.POST("/analyze/:symbol", h.AnalyzeAsset)
	protected.POST("/cycle/run", h.RunCycle)
	protected.POST("/agent/start", h.StartAgent)
	protected.POST("/agent/stop", h.StopAgent)
}
