// Package store implements the Campaign Store (spec §4.2): durable, multi-writer-safe
// persistence with retry-wrapped transient failures.
package store

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
	"github.com/primus-bench/orchestrator/pkg/metrics"
)

// withRetry retries a gorm operation against transient connectivity errors with a
// small bounded exponential backoff, then surfaces StoreUnavailable (spec §4.2).
// Non-transient errors (e.g. gorm.ErrRecordNotFound) pass through immediately.
func withRetry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)

	attempt := 0
	var lastErr error
	err := backoff.Retry(func() error {
		if attempt > 0 {
			metrics.StoreRetriesTotal.Inc()
		}
		attempt++
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, gorm.ErrRecordNotFound) {
			return backoff.Permanent(lastErr)
		}
		var appErr *apperrors.Error
		if errors.As(lastErr, &appErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, b)

	if err == nil {
		return nil
	}
	if errors.Is(lastErr, gorm.ErrRecordNotFound) {
		return lastErr
	}
	var appErr *apperrors.Error
	if errors.As(lastErr, &appErr) {
		return lastErr
	}

	return apperrors.New().
		WithKind(apperrors.KindTransient).
		WithCode(apperrors.CodeStoreUnavailable).
		WithMessage("store operation exhausted retries").
		WithError(lastErr).Err()
}
