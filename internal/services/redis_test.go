package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"fairdice-backend/internal/config"
	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

const redisTestAddress = "0x00000000000000000000000000000000000099aa"

func setupTestRedis(t *testing.T) *services.RedisService {
	t.Helper()
	cfg := &config.Config{
		RedisURL:  "localhost:6379",
		RedisPass: "",
		RedisDB:   0,
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		redisService.DeleteLedger(context.Background(), redisTestAddress)
		redisService.Close()
	})
	redisService.DeleteLedger(context.Background(), redisTestAddress)
	return redisService
}

func TestRedisLedgerStore(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	ledger, err := redisService.Load(ctx, redisTestAddress)
	if err != nil {
		t.Fatalf("Failed to load ledger: %v", err)
	}
	if ledger.Version != 0 || !ledger.AvailableBalance.IsZero() {
		t.Errorf("Expected an empty ledger, got version %d balance %s", ledger.Version, ledger.AvailableBalance)
	}

	stale, _ := redisService.Load(ctx, redisTestAddress)

	ev, err := ledger.Apply(models.NewDepositEvent(models.NewAmount(1000), "0xabc", time.Now()))
	if err != nil {
		t.Fatalf("Failed to apply deposit: %v", err)
	}
	if err := redisService.Append(ctx, ledger, ev); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	ev, _ = stale.Apply(models.NewDepositEvent(models.NewAmount(1), "0xdef", time.Now()))
	if err := redisService.Append(ctx, stale, ev); !apperrors.HasCode(err, apperrors.CodeWriteConflict) {
		t.Errorf("Expected LEDGER_WRITE_CONFLICT for a stale write, got %v", err)
	}

	stored, err := redisService.Load(ctx, redisTestAddress)
	if err != nil {
		t.Fatalf("Failed to reload ledger: %v", err)
	}
	if stored.AvailableBalance.String() != "1000" {
		t.Errorf("Expected balance 1000, got %s", stored.AvailableBalance)
	}
	if stored.Version != 1 || len(stored.Events) != 1 {
		t.Errorf("Expected version 1 with one event, got %d with %d", stored.Version, len(stored.Events))
	}

	all, err := redisService.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list ledgers: %v", err)
	}
	found := false
	for _, l := range all {
		if l.Address == redisTestAddress {
			found = true
		}
	}
	if !found {
		t.Error("Ledger should be listed after its first write")
	}
}

func TestRedisSeedStore(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()
	pool := services.NewSeedPool(redisService, time.Minute, nil)

	hash, err := pool.NewCommitment(ctx)
	if err != nil {
		t.Fatalf("Failed to create commitment: %v", err)
	}

	secret, err := redisService.Take(ctx, hash)
	if err != nil {
		t.Fatalf("Failed to take commitment: %v", err)
	}
	if services.HashSeed(secret) != hash {
		t.Error("Stored secret does not match its hash")
	}

	if _, err := redisService.Take(ctx, hash); !apperrors.HasCode(err, apperrors.CodeCommitmentNotFound) {
		t.Errorf("Expected COMMITMENT_NOT_FOUND on second take, got %v", err)
	}
}

func TestRedisSeedStoreConcurrentTake(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	secret, err := services.GenerateServerSeed()
	if err != nil {
		t.Fatalf("Failed to generate seed: %v", err)
	}
	hash := services.HashSeed(secret)
	if err := redisService.Put(ctx, hash, secret, time.Minute); err != nil {
		t.Fatalf("Failed to store commitment: %v", err)
	}

	const callers = 32
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := redisService.Take(ctx, hash)
			if apperrors.HasCode(err, apperrors.CodeCommitmentNotFound) {
				return
			}
			if err != nil {
				t.Errorf("Unexpected take error: %v", err)
				return
			}
			if got != secret {
				t.Errorf("Expected secret %s, got %s", secret, got)
			}
			mu.Lock()
			taken++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if taken != 1 {
		t.Errorf("Expected exactly 1 successful take, got %d", taken)
	}
}

func TestRedisListReportsCorruptLedger(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := client.Set(ctx, fmt.Sprintf(services.KeyLedger, redisTestAddress), "not json", 0).Err(); err != nil {
		t.Fatalf("Failed to write ledger: %v", err)
	}
	if err := client.SAdd(ctx, services.KeyLedgerIndex, redisTestAddress).Err(); err != nil {
		t.Fatalf("Failed to index ledger: %v", err)
	}

	if _, err := redisService.List(ctx); err == nil {
		t.Error("Expected an error for a corrupt ledger")
	}
}

func TestRedisRateLimit(t *testing.T) {
	redisService := setupTestRedis(t)
	ctx := context.Background()

	redisService.ClearRateLimit(ctx, redisTestAddress, "bet")
	defer redisService.ClearRateLimit(ctx, redisTestAddress, "bet")

	for i := 0; i < 5; i++ {
		allowed, err := redisService.CheckRateLimit(ctx, redisTestAddress, "bet", 5, time.Minute)
		if err != nil {
			t.Fatalf("Failed to check rate limit: %v", err)
		}
		if !allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	allowed, err := redisService.CheckRateLimit(ctx, redisTestAddress, "bet", 5, time.Minute)
	if err != nil {
		t.Fatalf("Failed to check rate limit: %v", err)
	}
	if allowed {
		t.Error("Sixth request should be rate limited")
	}
}
