package services

import (
	"context"
	"fmt"
	"log"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
)

type GameEngine struct {
	ledger      *Ledger
	seeds       *SeedPool
	limiter     RateLimiter
	betLimit    int
	metrics     *Metrics
	broadcaster Broadcaster
}

type GameEngineConfig struct {
	Ledger      *Ledger
	Seeds       *SeedPool
	Limiter     RateLimiter
	BetLimit    int
	Metrics     *Metrics
	Broadcaster Broadcaster
}

func NewGameEngine(cfg GameEngineConfig) *GameEngine {
	betLimit := cfg.BetLimit
	if betLimit <= 0 {
		betLimit = DefaultRateLimitBets
	}
	return &GameEngine{
		ledger:      cfg.Ledger,
		seeds:       cfg.Seeds,
		limiter:     cfg.Limiter,
		betLimit:    betLimit,
		metrics:     cfg.Metrics,
		broadcaster: cfg.Broadcaster,
	}
}

// NewCommitment publishes the hash of a fresh server seed, together with a
// suggested client seed.
func (ge *GameEngine) NewCommitment(ctx context.Context) (*models.CommitmentResponse, error) {
	hash, err := ge.seeds.NewCommitment(ctx)
	if err != nil {
		return nil, err
	}
	clientSeed, err := models.GenerateClientSeed()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransient, "failed to generate client seed", err)
	}
	return &models.CommitmentResponse{ServerSeedHash: hash, SuggestedClientSeed: clientSeed}, nil
}

func (ge *GameEngine) PlaceBet(ctx context.Context, req *models.BetRequest) (*models.BetResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	variant, err := req.Variant()
	if err != nil {
		return nil, err
	}

	if ge.limiter != nil {
		allowed, err := ge.limiter.Allow(ctx, fmt.Sprintf(KeyRateLimit, req.Address, "bet"), ge.betLimit, RateLimitWindow)
		if err != nil {
			log.Printf("rate limit check failed for %s: %v", req.Address, err)
		} else if !allowed {
			return nil, apperrors.WithMetadata(apperrors.CodeRateLimited, "bet rate limit exceeded", map[string]string{"address": req.Address})
		}
	}

	settled, err := ge.ledger.SettleBet(ctx, SettleParams{
		Address:        req.Address,
		Amount:         req.Stake(),
		Variant:        variant,
		ClientSeed:     req.ClientSeed,
		Nonce:          *req.Nonce,
		ServerSeedHash: req.ServerSeedHash,
	}, ge.seeds)
	if err != nil {
		return nil, err
	}

	if ge.broadcaster != nil {
		ge.broadcaster.BroadcastBet(req.Address, settled.Bet)
	}

	return &models.BetResult{
		Roll:               settled.Bet.Roll,
		Outcome:            settled.Bet.Outcome,
		ServerSeedRevealed: settled.Bet.ServerSeedRevealed,
		ServerSeedHash:     settled.Bet.ServerSeedHash,
		NextServerSeedHash: settled.Reveal.NextHash,
		NewBalance:         settled.Ledger.AvailableBalance,
		Commitment:         settled.Bet.Commitment,
		Bet:                settled.Bet,
	}, nil
}

// VerifyGameResult lets players check a revealed roll without trusting the
// server.
func (ge *GameEngine) VerifyGameResult(req *models.VerifyRequest) (*models.VerifyResult, error) {
	return Verify(req)
}
