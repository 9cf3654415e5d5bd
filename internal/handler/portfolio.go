package handler

import (
	"net/http"
	"strings"

	"crypto-trading-agent/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetPositions godoc
// @Summary      List open positions
// @Description  Returns open positions marked at the latest quote
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/positions [get]
func (h *Handler) GetPositions(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-positions")
	defer span.End()

	view := h.portfolio.Portfolio(ctx)
	c.JSON(http.StatusOK, gin.H{"positions": view.Positions})
}

// GetTrades godoc
// @Summary      List executed trades
// @Description  Returns the trade ledger in execution order
// @Tags         portfolio
// @Produce      json
// @Param        symbol  query  string  false  "Filter by asset symbol"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/trades [get]
func (h *Handler) GetTrades(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trades")
	defer span.End()

	trades := h.portfolio.Trades(ctx)
	if symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); symbol != "" {
		filtered := make([]domain.TradeRecord, 0, len(trades))
		for _, t := range trades {
			if t.Symbol == symbol {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// GetPortfolio godoc
// @Summary      Portfolio overview
// @Description  Returns paper account balances, open positions and the trading summary
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  service.PortfolioView
// @Router       /api/portfolio [get]
func (h *Handler) GetPortfolio(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-portfolio")
	defer span.End()

	c.JSON(http.StatusOK, h.portfolio.Portfolio(ctx))
}
