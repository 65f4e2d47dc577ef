package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fairdice-backend/internal/config"
	"fairdice-backend/internal/handlers"
	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

// backend bundles the stores selected by STORE_BACKEND.
type backend struct {
	ledgers services.LedgerStore
	seeds   services.SeedStore
	limiter services.RateLimiter
	ping    func(ctx context.Context) error
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		redisService, err := services.NewRedisService(cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			ledgers: redisService,
			seeds:   redisService,
			limiter: redisService,
			ping:    redisService.Ping,
			close:   func() { redisService.Close() },
		}, nil

	case config.BackendPostgres:
		store, err := services.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &backend{
			ledgers: store,
			seeds:   store,
			limiter: services.NewMemoryRateLimiter(),
			ping:    store.Ping,
			close:   store.Close,
		}, nil

	default:
		return &backend{
			ledgers: services.NewMemoryStore(),
			seeds:   services.NewMemorySeedStore(),
			limiter: services.NewMemoryRateLimiter(),
			close:   func() {},
		}, nil
	}
}

func main() {
	log.SetPrefix("[FAIRDICE] ")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.StoreBackend, err)
	}
	defer store.close()
	log.Printf("Using %s backend", cfg.StoreBackend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	hub := handlers.NewWebSocketHub()
	go hub.Run(ctx)

	ledgerOpts := []services.LedgerOption{
		services.WithMaxRetries(cfg.LedgerWriteRetries),
		services.WithMetrics(metrics),
		services.WithBroadcaster(hub),
	}
	if cfg.MaxBet != "" {
		maxBet, err := models.ParseAmount(cfg.MaxBet)
		if err != nil {
			log.Fatalf("Invalid MAX_BET: %v", err)
		}
		ledgerOpts = append(ledgerOpts, services.WithMaxBet(maxBet))
	}
	ledger := services.NewLedger(store.ledgers, ledgerOpts...)

	seeds := services.NewSeedPool(store.seeds, cfg.SeedTTL, metrics)
	gameEngine := services.NewGameEngine(services.GameEngineConfig{
		Ledger:      ledger,
		Seeds:       seeds,
		Limiter:     store.limiter,
		BetLimit:    cfg.BetRateLimit,
		Metrics:     metrics,
		Broadcaster: hub,
	})
	stats := services.NewStats(ledger, nil)

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)
	if !jwtService.Enabled() {
		log.Println("JWT_SECRET not set, deposit/withdraw/mint/exchange routes will reject every request")
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n, err := seeds.Cleanup(ctx); err != nil {
					log.Printf("Seed cleanup failed: %v", err)
				} else if n > 0 {
					log.Printf("Dropped %d expired seed commitments", n)
				}
				if l, ok := store.limiter.(*services.MemoryRateLimiter); ok {
					l.Sweep(now)
				}
			}
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		GameEngine:          gameEngine,
		Ledger:              ledger,
		Stats:               stats,
		Hub:                 hub,
		JWT:                 jwtService,
		Limiter:             store.limiter,
		Metrics:             metrics,
		Gatherer:            reg,
		HealthCheck:         store.ping,
		MaxPageSize:         cfg.HistoryMaxPageSize,
		MaxLeaderboardLimit: cfg.LeaderboardMaxLimit,
		WriteRateLimit:      cfg.BetRateLimit * 2,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
