package handler

import (
	"errors"
	"net/http"

	"crypto-trading-agent/internal/job"

	"github.com/gin-gonic/gin"
)

// GetStatus godoc
// @Summary      Agent status
// @Description  Returns whether the periodic agent runs and the outcome of the last cycle
// @Tags         agent
// @Produce      json
// @Success      200  {object}  job.Status
// @Failure      503  {object}  map[string]string
// @Router       /api/status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-status")
	defer span.End()

	c.JSON(http.StatusOK, h.agent.Status())
}

// RunCycle godoc
// @Summary      Run one cycle now
// @Description  Analyzes every configured asset and applies the resulting decisions
// @Tags         agent
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/cycle/run [post]
func (h *Handler) RunCycle(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-cycle")
	defer span.End()

	result, err := h.agent.RunNow(ctx)
	if errors.Is(err, job.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cycle_at":  result.CycleAt,
		"analyses":  result.Analyses,
		"decisions": result.Decisions,
		"errors":    result.ErrorStrings(),
		"warnings":  result.Warnings,
		"cancelled": result.Cancelled,
	})
}

// StartAgent godoc
// @Summary      Start the periodic agent
// @Tags         agent
// @Produce      json
// @Success      200  {object}  job.Status
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/agent/start [post]
func (h *Handler) StartAgent(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	_, span := h.tracer.Start(c.Request.Context(), "handler.start-agent")
	defer span.End()

	if err := h.agent.Resume(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.agent.Status())
}

// StopAgent godoc
// @Summary      Stop the periodic agent
// @Description  Stops scheduling and waits for an in-flight cycle to reach its next checkpoint
// @Tags         agent
// @Produce      json
// @Success      200  {object}  job.Status
// @Failure      503  {object}  map[string]string
// @Router       /api/agent/stop [post]
func (h *Handler) StopAgent(c *gin.Context) {
	if h.agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent unavailable"})
		return
	}
	_, span := h.tracer.Start(c.Request.Context(), "handler.stop-agent")
	defer span.End()

	h.agent.Stop()
	c.JSON(http.StatusOK, h.agent.Status())
}
