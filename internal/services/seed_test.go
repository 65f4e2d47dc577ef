package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "fairdice-backend/internal/errors"
)

func TestSeedPoolConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySeedStore()
	pool := NewSeedPool(store, time.Hour, nil)

	hash, err := pool.NewCommitment(ctx)
	if err != nil {
		t.Fatalf("Failed to create commitment: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("Expected a 64 character hash, got %q", hash)
	}

	first, err := pool.Consume(ctx, hash)
	if err != nil {
		t.Fatalf("Failed to consume commitment: %v", err)
	}
	if first.Fallback {
		t.Error("First consumption should reveal the committed seed")
	}
	if HashSeed(first.Secret) != hash {
		t.Error("Revealed secret does not hash to the commitment")
	}
	if first.NextHash == "" || first.NextHash == hash {
		t.Errorf("Expected a new commitment, got %q", first.NextHash)
	}

	second, err := pool.Consume(ctx, hash)
	if err != nil {
		t.Fatalf("Second consumption should fall back, got %v", err)
	}
	if !second.Fallback {
		t.Error("Second consumption of the same hash should be a fallback")
	}
	if second.Secret == first.Secret {
		t.Error("Fallback must not reuse the consumed secret")
	}
	if HashSeed(second.Secret) != second.Hash {
		t.Error("Fallback hash does not match its secret")
	}
}

func TestSeedPoolConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	pool := NewSeedPool(NewMemorySeedStore(), time.Hour, nil)

	hash, err := pool.NewCommitment(ctx)
	if err != nil {
		t.Fatalf("Failed to create commitment: %v", err)
	}

	const callers = 64
	reveals := make([]Reveal, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reveals[i], errs[i] = pool.Consume(ctx, hash)
		}(i)
	}
	wg.Wait()

	committed := 0
	secrets := make(map[string]bool, callers)
	for i, reveal := range reveals {
		if errs[i] != nil {
			t.Fatalf("Consume %d failed: %v", i, errs[i])
		}
		if !reveal.Fallback {
			committed++
			if HashSeed(reveal.Secret) != hash {
				t.Error("Committed reveal does not match the hash")
			}
		}
		if secrets[reveal.Secret] {
			t.Errorf("Secret handed out twice: %s", reveal.Secret)
		}
		secrets[reveal.Secret] = true
	}
	if committed != 1 {
		t.Errorf("Expected exactly 1 committed reveal, got %d", committed)
	}
}

func TestSeedPoolUnknownAndEmptyHash(t *testing.T) {
	ctx := context.Background()
	pool := NewSeedPool(NewMemorySeedStore(), time.Hour, nil)

	for _, hash := range []string{"", "deadbeef"} {
		reveal, err := pool.Consume(ctx, hash)
		if err != nil {
			t.Fatalf("Consume(%q) failed: %v", hash, err)
		}
		if !reveal.Fallback {
			t.Errorf("Consume(%q) should fall back", hash)
		}
	}
}

func TestSeedPoolExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemorySeedStore()
	store.now = func() time.Time { return now }
	pool := NewSeedPool(store, time.Minute, nil)
	pool.now = store.now

	hash, err := pool.NewCommitment(ctx)
	if err != nil {
		t.Fatalf("Failed to create commitment: %v", err)
	}

	now = now.Add(2 * time.Minute)
	reveal, err := pool.Consume(ctx, hash)
	if err != nil {
		t.Fatalf("Failed to consume: %v", err)
	}
	if !reveal.Fallback {
		t.Error("An expired commitment should fall back")
	}

	// the commitment issued by Consume is the only one left
	if store.Len() != 1 {
		t.Fatalf("Expected one outstanding commitment, got %d", store.Len())
	}
	now = now.Add(2 * time.Minute)
	removed, err := pool.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 || store.Len() != 0 {
		t.Errorf("Expected cleanup to remove 1, removed %d and left %d", removed, store.Len())
	}
}

type tamperedStore struct{ *MemorySeedStore }

func (s tamperedStore) Take(ctx context.Context, hash string) (string, error) {
	if _, err := s.MemorySeedStore.Take(ctx, hash); err != nil {
		return "", err
	}
	return "not-the-committed-secret", nil
}

func TestSeedPoolRejectsMismatchedSecret(t *testing.T) {
	ctx := context.Background()
	pool := NewSeedPool(tamperedStore{NewMemorySeedStore()}, time.Hour, nil)

	hash, err := pool.NewCommitment(ctx)
	if err != nil {
		t.Fatalf("Failed to create commitment: %v", err)
	}
	reveal, err := pool.Consume(ctx, hash)
	if err != nil {
		t.Fatalf("Failed to consume: %v", err)
	}
	if !reveal.Fallback || reveal.Secret == "not-the-committed-secret" {
		t.Errorf("Expected a fallback seed, got %+v", reveal)
	}
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, string, time.Duration) error { return nil }
func (brokenStore) Take(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func TestSeedPoolStoreFailureIsTransient(t *testing.T) {
	pool := NewSeedPool(brokenStore{}, time.Hour, nil)

	_, err := pool.Consume(context.Background(), "abc")
	if !apperrors.HasCode(err, apperrors.CodeTransient) {
		t.Errorf("Expected TRANSIENT, got %v", err)
	}
}
