package handlers

import (
	"github.com/gin-gonic/gin"

	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

type StatsHandler struct {
	stats    *services.Stats
	maxLimit int
}

func NewStatsHandler(stats *services.Stats, maxLimit int) *StatsHandler {
	return &StatsHandler{stats: stats, maxLimit: maxLimit}
}

func (h *StatsHandler) BalanceHistory(c *gin.Context) {
	hours, err := hoursQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	points, err := h.stats.BalanceHistory(c.Request.Context(), c.Query("address"), hours)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, points)
}

func (h *StatsHandler) BettingStats(c *gin.Context) {
	hours, err := hoursQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.stats.BettingStats(c.Request.Context(), c.Query("address"), hours)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

func (h *StatsHandler) BettingStatsHistory(c *gin.Context) {
	hours, err := hoursQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.stats.BettingStatsHistory(c.Request.Context(), c.Query("address"), hours)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, history)
}

func (h *StatsHandler) Leaderboard(c *gin.Context) {
	limit, err := intQuery(c, "limit", 10, h.maxLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	metric := models.ParseLeaderboardMetric(c.Query("metric"))

	entries, err := h.stats.Leaderboard(c.Request.Context(), metric, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"metric": metric, "entries": entries})
}
