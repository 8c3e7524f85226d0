// Package reliability provides the two composable behaviours wrapped around
// pipeline stages: bounded retry with a fixed, cancellable inter-attempt delay,
// and TTL caching of pure derivations.
package reliability

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qbatchproject/qbatch/internal/qbatcherrors"
)

// RetryConfig controls the retry behaviour of a wrapped operation.
type RetryConfig struct {
	// MaxTries bounds the total number of invocations, including the first.
	MaxTries uint
	// Delay is the fixed wait between attempts. The wait completes early when the
	// context is cancelled.
	Delay time.Duration
}

// DefaultRetryConfig mirrors the submission retry policy: three attempts with a
// 30 second pause between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxTries: 3, Delay: 30 * time.Second}
}

// Retry invokes op up to cfg.MaxTries times, logging each failed attempt and
// waiting cfg.Delay between attempts. After the final failure the last error is
// returned, wrapped with the operation name. There is no overall deadline beyond
// what ctx imposes.
func Retry(ctx context.Context, name string, cfg RetryConfig, op func() error) error {
	if cfg.MaxTries == 0 {
		return errors.WithStack(&qbatcherrors.ErrInvalidArgument{
			Name:    "MaxTries",
			Value:   cfg.MaxTries,
			Message: "at least one attempt is required",
		})
	}
	err := retry.Do(
		op,
		retry.Attempts(cfg.MaxTries),
		retry.Delay(cfg.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(attempt uint, err error) {
			log.WithError(err).Warnf("attempt %d/%d of %s failed; retrying in %s",
				attempt+1, cfg.MaxTries, name, cfg.Delay)
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "%s failed after %d attempts", name, cfg.MaxTries)
	}
	return nil
}

// RetryResult is Retry for operations that produce a value.
func RetryResult[T any](ctx context.Context, name string, cfg RetryConfig, op func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, name, cfg, func() error {
		var err error
		result, err = op()
		return err
	})
	return result, err
}
