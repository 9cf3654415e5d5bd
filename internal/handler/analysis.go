package handler

import (
	"errors"
	"net/http"
	"strings"

	"crypto-trading-agent/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ListAnalyses godoc
// @Summary      Latest analyses
// @Description  Returns the most recent analysis of every asset seen by this process
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/analysis [get]
func (h *Handler) ListAnalyses(c *gin.Context) {
	if h.analyses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis cache unavailable"})
		return
	}
	_, span := h.tracer.Start(c.Request.Context(), "handler.list-analyses")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"analyses": h.analyses.Latest()})
}

// GetAnalysis godoc
// @Summary      Latest analysis for an asset
// @Description  Returns the cached indicators, signals and action of the last cycle
// @Tags         analysis
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  domain.AssetAnalysis
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/analysis/{symbol} [get]
func (h *Handler) GetAnalysis(c *gin.Context) {
	if h.analyses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis cache unavailable"})
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	analysis, found, err := h.analyses.Get(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis for " + symbol + " yet"})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// AnalyzeAsset godoc
// @Summary      Analyze one asset now
// @Description  Runs indicators, sentiment and signal fusion for one asset without trading
// @Tags         analysis
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyze/{symbol} [post]
func (h *Handler) AnalyzeAsset(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis engine unavailable"})
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze-asset")
	defer span.End()

	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	analysis, warnings, err := h.analyzer.AnalyzeAsset(ctx, symbol)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis, "warnings": warnings})
}

func symbolParam(c *gin.Context) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if !domain.IsSupportedSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": domain.SupportedSymbols,
		})
		return "", false
	}
	return symbol, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
