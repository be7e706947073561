// Package common defines shared constants and sentinel errors used across
// authkeeper layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Caller mistakes.
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateEmail = errors.New("email already registered")

	// Authentication refusals. ErrInvalidCredentials covers both an unknown
	// email and a wrong password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")

	// Token errors (malformed, bad signature or expired).
	ErrInvalidToken = errors.New("invalid token")

	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("rate limited")

	// Infrastructure failures surfaced to callers without detail.
	ErrorInternal = errors.New("internal error")
)

// LockedError refuses a login on a locked account and tells how long the lock
// still holds. It matches ErrAccountLocked.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string { return ErrAccountLocked.Error() }

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }
