package services

import (
	"context"
	"log"
	"time"

	apperrors "fairdice-backend/internal/errors"
)

// SeedStore holds outstanding commitments keyed by hash. Take must be an
// atomic check-and-delete and report a missing hash with
// COMMITMENT_NOT_FOUND.
type SeedStore interface {
	Put(ctx context.Context, hash, secret string, ttl time.Duration) error
	Take(ctx context.Context, hash string) (string, error)
}

// seedSweeper is implemented by stores that do not expire entries on their own.
type seedSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Reveal is the result of consuming a commitment.
type Reveal struct {
	Secret   string
	Hash     string
	NextHash string
	// Fallback is set when the presented hash was unknown and Secret was
	// generated on the spot, so it was never committed to.
	Fallback bool
}

type SeedPool struct {
	store   SeedStore
	ttl     time.Duration
	metrics *Metrics
	now     func() time.Time
}

func NewSeedPool(store SeedStore, ttl time.Duration, metrics *Metrics) *SeedPool {
	if ttl <= 0 {
		ttl = TTLSeedCommitment
	}
	return &SeedPool{
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
	}
}

// NewCommitment generates a server seed, stores it and returns its hash.
func (p *SeedPool) NewCommitment(ctx context.Context) (string, error) {
	secret, err := GenerateServerSeed()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeTransient, "failed to generate server seed", err)
	}
	hash := HashSeed(secret)
	if err := p.store.Put(ctx, hash, secret, p.ttl); err != nil {
		return "", apperrors.Wrap(apperrors.CodeTransient, "failed to store seed commitment", err)
	}
	p.metrics.SeedCommitted()
	return hash, nil
}

// Consume reveals the secret behind hash and issues the next commitment.
// An unknown, expired or already consumed hash does not fail: a fresh seed
// is generated instead and the reveal is marked as a fallback.
func (p *SeedPool) Consume(ctx context.Context, hash string) (Reveal, error) {
	next, err := p.NewCommitment(ctx)
	if err != nil {
		return Reveal{}, err
	}

	if hash != "" {
		secret, err := p.store.Take(ctx, hash)
		switch {
		case err == nil && HashSeed(secret) == hash:
			return Reveal{Secret: secret, Hash: hash, NextHash: next}, nil
		case err == nil:
			log.Printf("seed store returned a secret that does not match commitment %s", hash)
		case !apperrors.HasCode(err, apperrors.CodeCommitmentNotFound):
			return Reveal{}, apperrors.Wrap(apperrors.CodeTransient, "failed to consume seed commitment", err)
		}
	}

	secret, err := GenerateServerSeed()
	if err != nil {
		return Reveal{}, apperrors.Wrap(apperrors.CodeTransient, "failed to generate server seed", err)
	}
	reveal := Reveal{
		Secret:   secret,
		Hash:     HashSeed(secret),
		NextHash: next,
		Fallback: true,
	}

	p.metrics.SeedFallback()
	log.Printf("seed commitment %q not found, rolling with fallback seed %s", hash, reveal.Hash)
	return reveal, nil
}

// Cleanup drops expired commitments from stores that need sweeping.
func (p *SeedPool) Cleanup(ctx context.Context) (int, error) {
	sweeper, ok := p.store.(seedSweeper)
	if !ok {
		return 0, nil
	}
	return sweeper.Sweep(ctx, p.now())
}

func commitmentNotFound(hash string) error {
	return apperrors.WithMetadata(apperrors.CodeCommitmentNotFound, "seed commitment not found", map[string]string{"hash": hash})
}
