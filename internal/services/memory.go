package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
)

// MemoryStore keeps ledgers in process. It is the default backend for a
// single instance and for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	ledgers map[string]*models.UserLedger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledgers: make(map[string]*models.UserLedger)}
}

func (s *MemoryStore) Load(_ context.Context, address string) (*models.UserLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.ledgers[address]; ok {
		return l.Clone(), nil
	}
	return models.NewUserLedger(address), nil
}

func (s *MemoryStore) Append(_ context.Context, ledger *models.UserLedger, _ models.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	if l, ok := s.ledgers[ledger.Address]; ok {
		current = l.Version
	}
	if current != ledger.Version {
		return writeConflict(ledger.Address, ledger.Version, current)
	}

	ledger.Version++
	s.ledgers[ledger.Address] = ledger.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.UserLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.UserLedger, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

type memorySeed struct {
	secret    string
	expiresAt time.Time
}

type MemorySeedStore struct {
	mu    sync.Mutex
	seeds map[string]memorySeed
	now   func() time.Time
}

func NewMemorySeedStore() *MemorySeedStore {
	return &MemorySeedStore{
		seeds: make(map[string]memorySeed),
		now:   time.Now,
	}
}

func (s *MemorySeedStore) Put(_ context.Context, hash, secret string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seeds[hash] = memorySeed{secret: secret, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySeedStore) Take(_ context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seed, ok := s.seeds[hash]
	if !ok {
		return "", commitmentNotFound(hash)
	}
	delete(s.seeds, hash)
	if !s.now().Before(seed.expiresAt) {
		return "", commitmentNotFound(hash)
	}
	return seed.secret, nil
}

func (s *MemorySeedStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for hash, seed := range s.seeds {
		if !now.Before(seed.expiresAt) {
			delete(s.seeds, hash)
			removed++
		}
	}
	return removed, nil
}

func (s *MemorySeedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seeds)
}

// RateLimiter counts actions per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

func (r *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		r.windows[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

// Sweep forgets windows that have already reset.
func (r *MemoryRateLimiter) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, w := range r.windows {
		if !now.Before(w.resetAt) {
			delete(r.windows, key)
		}
	}
}

func writeConflict(address string, expected, actual uint64) error {
	return apperrors.WithMetadata(apperrors.CodeWriteConflict, "ledger was modified concurrently", map[string]string{
		"address":  address,
		"expected": fmt.Sprint(expected),
		"actual":   fmt.Sprint(actual),
	})
}
