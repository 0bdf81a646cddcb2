package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/retry"
)

// Forever is a write-only view of a client whose commands are retried with
// backoff until they succeed or ctx is done. Callers bound ctx. Reads stay
// on the plain client, where a missing key is an answer rather than a fault.
type Forever interface {
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key string, values ...any) error
	HDel(ctx context.Context, key string, fields ...string) error
}

type forever struct {
	client redis.UniversalClient
	retry  retry.Retry
}

func NewForever(client redis.UniversalClient, initialInterval, maxInterval time.Duration, logger *log.Logger) Forever {
	if client == nil || logger == nil {
		panic("redis: client and logger are required")
	}
	if initialInterval <= 0 {
		initialInterval = 100 * time.Millisecond
	}
	if maxInterval <= 0 {
		maxInterval = 10 * time.Second
	}
	return &forever{
		client: client,
		retry:  retry.New(logger, initialInterval, maxInterval, 0, retry.Always),
	}
}

// do skips the backoff machinery when the first attempt succeeds.
func (f *forever) do(ctx context.Context, cmd func() error) error {
	if err := cmd(); err == nil {
		return nil
	}
	return f.retry.Do(ctx, cmd)
}

func (f *forever) Del(ctx context.Context, key string) error {
	return f.do(ctx, func() error { return f.client.Del(ctx, key).Err() })
}

func (f *forever) HSet(ctx context.Context, key string, values ...any) error {
	return f.do(ctx, func() error { return f.client.HSet(ctx, key, values...).Err() })
}

func (f *forever) HDel(ctx context.Context, key string, fields ...string) error {
	return f.do(ctx, func() error { return f.client.HDel(ctx, key, fields...).Err() })
}
