// Package worker hosts the queue consumers' state machines: generation
// (prompt to stored artifacts), action (per-artifact curation) and ideation
// (stateless Q&A). Queues deliver at least once, so every handler here treats
// "already in a terminal state" as a fast no-op instead of an error.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"imagebot/internal/domain"
)

const (
	providerMaxRetries     = 4
	providerInitialBackoff = 2 * time.Second
)

// IsPermanent reports whether err can never succeed on redelivery: malformed
// payloads, missing records and non-throttling provider rejections go straight
// to the dead-letter queue.
func IsPermanent(err error) bool {
	if errors.Is(err, domain.ErrMalformedJob) || errors.Is(err, domain.ErrNotFound) {
		return true
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return !pe.Transient
	}
	return false
}

// retryTransient runs op with exponential backoff and jitter, retrying only
// throttling-class provider errors. Permanent errors abort immediately.
func retryTransient(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = providerInitialBackoff
	// RandomizationFactor defaults to 0.5, which gives the jitter providers
	// want to see from throttled clients.

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if domain.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(policy, providerMaxRetries), ctx))
}
