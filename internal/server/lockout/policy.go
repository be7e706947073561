// Package lockout decides whether an account may attempt a password check
// and how its failure counters change after one.
package lockout

import (
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const (
	DefaultMaxAttempts = 5
	DefaultDuration    = 30 * time.Minute
)

type Decision int

const (
	Allowed Decision = iota
	Locked
)

func (d Decision) String() string {
	if d == Locked {
		return "locked"
	}
	return "allowed"
}

// Policy has no state of its own; every method is a function of its
// arguments.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
}

func NewPolicy(maxAttempts int, duration time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Policy{MaxAttempts: maxAttempts, Duration: duration}
}

// Evaluate returns Locked iff the account carries a lock that ends after now.
func (p Policy) Evaluate(account *models.Account, now time.Time) Decision {
	if account.LockedUntil != nil && account.LockedUntil.After(now) {
		return Locked
	}
	return Allowed
}

// OnFailure counts one more failure on top of the value read at the start of
// the attempt and locks the account once the count reaches MaxAttempts.
func (p Policy) OnFailure(account *models.Account, now time.Time) models.LockoutState {
	expected := account.FailedAttempts
	state := models.LockoutState{
		FailedAttempts:         expected + 1,
		ExpectedFailedAttempts: &expected,
	}
	if state.FailedAttempts >= p.MaxAttempts {
		until := now.Add(p.Duration)
		state.LockedUntil = &until
	}
	return state
}

// OnSuccess clears the counter and the lock, and stamps the login time.
func (p Policy) OnSuccess(now time.Time) models.LockoutState {
	return models.LockoutState{FailedAttempts: 0, LockedUntil: nil, LastLoginAt: &now}
}

// RetryAfter is how long a locked account still has to wait; zero when
// not locked.
func (p Policy) RetryAfter(account *models.Account, now time.Time) time.Duration {
	if p.Evaluate(account, now) != Locked {
		return 0
	}
	return account.LockedUntil.Sub(now)
}
