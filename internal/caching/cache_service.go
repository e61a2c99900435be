package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"mizan2/internal/models"

	"github.com/redis/go-redis/v9"
)

// CacheService holds the read-through display snapshots and the settlement
// retry queue. Nothing here is a source of truth: gating decisions always go
// back to Postgres.
type CacheService interface {
	// Usage snapshots for UI refreshes.
	SetUsageSnapshot(ctx context.Context, userID string, snapshot any, ttl time.Duration) error
	GetUsageSnapshot(ctx context.Context, userID string, out any) error
	DeleteUsageSnapshot(ctx context.Context, userID string) error

	// Settlement retry queue (see services.SettlementRetryQueue).
	Enqueue(ctx context.Context, activation *models.PendingActivation) error
	Dequeue(ctx context.Context) (*models.PendingActivation, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

const settlementRetryKey = "settlement:retry"

func usageKey(userID string) string {
	return fmt.Sprintf("usage:%s", userID)
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept both host:port and redis:// URLs from the environment.
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func (s *redisCacheService) SetUsageSnapshot(ctx context.Context, userID string, snapshot any, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, usageKey(userID), data, ttl).Err()
}

func (s *redisCacheService) GetUsageSnapshot(ctx context.Context, userID string, out any) error {
	data, err := s.client.Get(ctx, usageKey(userID)).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *redisCacheService) DeleteUsageSnapshot(ctx context.Context, userID string) error {
	return s.client.Del(ctx, usageKey(userID)).Err()
}

func (s *redisCacheService) Enqueue(ctx context.Context, activation *models.PendingActivation) error {
	data, err := json.Marshal(activation)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, settlementRetryKey, data).Err()
}

// Dequeue pops the oldest parked activation. Returns (nil, nil) on an empty
// queue so the retry job can tell "nothing to do" from a redis failure.
func (s *redisCacheService) Dequeue(ctx context.Context) (*models.PendingActivation, error) {
	data, err := s.client.RPop(ctx, settlementRetryKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	activation := &models.PendingActivation{}
	if err := json.Unmarshal(data, activation); err != nil {
		return nil, err
	}
	return activation, nil
}

func (s *redisCacheService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
