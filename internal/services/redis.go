package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fairdice-backend/internal/config"
	"fairdice-backend/internal/models"
)

// RedisService backs the ledger, the seed pool and the rate limiter with a
// shared Redis, so several API instances see one consistent state.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Load(ctx context.Context, address string) (*models.UserLedger, error) {
	return s.getLedger(ctx, s.client, address)
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisService) getLedger(ctx context.Context, c redisGetter, address string) (*models.UserLedger, error) {
	data, err := c.Get(ctx, fmt.Sprintf(KeyLedger, address)).Result()
	if errors.Is(err, redis.Nil) {
		return models.NewUserLedger(address), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	var ledger models.UserLedger
	if err := json.Unmarshal([]byte(data), &ledger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	return &ledger, nil
}

// Append rewrites the ledger document inside WATCH/MULTI. A version
// mismatch or a concurrent write to the key is a write conflict.
func (s *RedisService) Append(ctx context.Context, ledger *models.UserLedger, _ models.LedgerEvent) error {
	key := fmt.Sprintf(KeyLedger, ledger.Address)
	expected := ledger.Version

	txf := func(tx *redis.Tx) error {
		current, err := s.getLedger(ctx, tx, ledger.Address)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return writeConflict(ledger.Address, expected, current.Version)
		}

		next := *ledger
		next.Version = expected + 1
		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, KeyLedgerIndex, ledger.Address)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return writeConflict(ledger.Address, expected, expected+1)
	}
	if err != nil {
		return err
	}

	ledger.Version = expected + 1
	return nil
}

func (s *RedisService) List(ctx context.Context) ([]*models.UserLedger, error) {
	addresses, err := s.client.SMembers(ctx, KeyLedgerIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	if len(addresses) == 0 {
		return []*models.UserLedger{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(addresses))
	for i, address := range addresses {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyLedger, address))
	}

	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	ledgers := make([]*models.UserLedger, 0, len(addresses))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			// indexed but deleted
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger %s: %w", addresses[i], err)
		}

		var ledger models.UserLedger
		if err := json.Unmarshal([]byte(data), &ledger); err != nil {
			return nil, fmt.Errorf("failed to decode ledger %s: %w", addresses[i], err)
		}
		ledgers = append(ledgers, &ledger)
	}
	return ledgers, nil
}

func (s *RedisService) Put(ctx context.Context, hash, secret string, ttl time.Duration) error {
	return s.client.Set(ctx, fmt.Sprintf(KeySeedCommitment, hash), secret, ttl).Err()
}

// Take relies on GETDEL, so two callers can never both receive a secret.
func (s *RedisService) Take(ctx context.Context, hash string) (string, error) {
	secret, err := s.client.GetDel(ctx, fmt.Sprintf(KeySeedCommitment, hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", commitmentNotFound(hash)
	}
	if err != nil {
		return "", fmt.Errorf("failed to take seed commitment: %w", err)
	}
	return secret, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, address, action string, limit int, window time.Duration) (bool, error) {
	return s.Allow(ctx, fmt.Sprintf(KeyRateLimit, address, action), limit, window)
}

func (s *RedisService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, address, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, address, action)).Err()
}

// DeleteLedger is used by tests to clean up after themselves.
func (s *RedisService) DeleteLedger(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, fmt.Sprintf(KeyLedger, address)).Err(); err != nil {
		return err
	}
	return s.client.SRem(ctx, KeyLedgerIndex, address).Err()
}
