package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairdice-backend/internal/middleware"
	"fairdice-backend/internal/services"
)

type RouterConfig struct {
	GameEngine *services.GameEngine
	Ledger     *services.Ledger
	Stats      *services.Stats
	Hub        *WebSocketHub
	JWT        *services.JWTService
	Limiter    services.RateLimiter
	Metrics    *services.Metrics
	Gatherer   prometheus.Gatherer
	// HealthCheck pings the backing store; nil means always healthy.
	HealthCheck func(ctx context.Context) error

	MaxPageSize         int
	MaxLeaderboardLimit int
	// WriteRateLimit caps POST requests per client IP and route per minute.
	WriteRateLimit int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gameHandler := NewGameHandler(cfg.GameEngine, cfg.Ledger, cfg.MaxPageSize)
	walletHandler := NewWalletHandler(cfg.Ledger)
	userHandler := NewUserHandler(cfg.Ledger)
	statsHandler := NewStatsHandler(cfg.Stats, cfg.MaxLeaderboardLimit)
	wsHandler := NewWebSocketHandler(cfg.Ledger, cfg.Hub)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(cfg.Metrics))

	router.GET("/health", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	var writeLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil && cfg.WriteRateLimit > 0 {
		writeLimit = middleware.RateLimit(cfg.Limiter, cfg.WriteRateLimit, time.Minute)
	}

	api := router.Group("/api")
	{
		api.GET("/new-seed", gameHandler.NewSeed)
		api.GET("/leaderboard", statsHandler.Leaderboard)
		api.GET("/ws", wsHandler.HandleWebSocket)

		game := api.Group("/game")
		{
			game.GET("/seed", gameHandler.NewSeed)
			game.POST("/bet", writeLimit, gameHandler.PlaceBet)
			game.POST("/verify", gameHandler.VerifyGame)
			game.GET("/balance", gameHandler.GetBalance)
			game.GET("/history", gameHandler.GetGameHistory)
			game.GET("/balance-history", statsHandler.BalanceHistory)
			game.GET("/betting-stats", statsHandler.BettingStats)
			game.GET("/betting-stats-history", statsHandler.BettingStatsHistory)
		}

		user := api.Group("/user")
		{
			user.GET("/profile", userHandler.GetProfile)
			user.GET("/transactions", userHandler.GetTransactions)
		}

		trusted := api.Group("")
		trusted.Use(middleware.ServiceAuth(cfg.JWT), writeLimit)
		{
			trusted.POST("/game/deposit", walletHandler.Deposit)
			trusted.POST("/game/withdraw", walletHandler.Withdraw)
			trusted.POST("/token/mint", walletHandler.RecordMint)
			trusted.POST("/token/exchange", walletHandler.RecordExchange)
		}
	}

	return router
}
