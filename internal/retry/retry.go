package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imtaco/meeting-coordinator/internal/log"
)

// Retry runs an operation with exponential backoff until it succeeds, the
// error is not retryable, maxElapsedTime passes or ctx is done.
type Retry interface {
	Do(ctx context.Context, operation func() error) error
}

// Retryable decides whether err is worth another attempt.
type Retryable func(err error) bool

// Always retries every error.
func Always(error) bool { return true }

func New(logger *log.Logger, initialInterval, maxInterval, maxElapsedTime time.Duration, retryable Retryable) Retry {
	if retryable == nil {
		retryable = Always
	}
	return &retryImpl{
		logger:          logger,
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		maxElapsedTime:  maxElapsedTime,
		retryable:       retryable,
	}
}

type retryImpl struct {
	logger          *log.Logger
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	retryable       Retryable
}

func (r *retryImpl) Do(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if !r.retryable(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("Retry attempt failed",
			log.Int("attempt", attempt),
			log.Error(err))
		return err
	}, backoff.WithContext(b, ctx))
}
