// Package ratelimit throttles requests per source address. It is coarser than
// the per-account lockout and independent of it.
package ratelimit

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend failures. Callers fail open on it.
var ErrUnavailable = errors.New("rate limiter unavailable")

type Limiter interface {
	// Allow consumes one request for key and reports whether it is within
	// the budget.
	Allow(ctx context.Context, key string) (bool, error)
}
