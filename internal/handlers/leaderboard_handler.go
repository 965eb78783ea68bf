package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services/leaderboard"
)

// LeaderboardHandler serves ranking snapshots
type LeaderboardHandler struct {
	leaderboard *leaderboard.LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(svc *leaderboard.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: svc}
}

// GetLeaderboard returns one page of the ranking for a period
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	period := models.LeaderboardPeriod(c.DefaultQuery("period", string(models.PeriodAllTime)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	entries, total, err := h.leaderboard.GetLeaderboard(c.Request.Context(), period, limit, page)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":  period,
		"entries": entries,
		"total":   total,
		"page":    page,
	})
}

// Recompute forces a snapshot rebuild. Admin only; the scheduled jobs
// make this unnecessary in normal operation.
func (h *LeaderboardHandler) Recompute(c *gin.Context) {
	periodStr := c.Query("period")
	if periodStr == "" {
		if err := h.leaderboard.RecomputeAll(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recomputed": "all"})
		return
	}

	period := models.LeaderboardPeriod(periodStr)
	if err := h.leaderboard.Recompute(c.Request.Context(), period); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recomputed": period})
}
