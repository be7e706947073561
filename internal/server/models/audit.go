package models

import "time"

// Reason is the recorded outcome of an authentication attempt.
type Reason string

const (
	ReasonUnknownAccount  Reason = "unknown_account"
	ReasonInactiveAccount Reason = "inactive_account"
	ReasonLockedAccount   Reason = "locked_account"
	ReasonBadCredentials  Reason = "bad_credentials"
	ReasonSuccess         Reason = "success"
	ReasonMissingFields   Reason = "missing_fields"
	ReasonInternalError   Reason = "internal_error"
	ReasonRateLimited     Reason = "rate_limited"
)

// Event distinguishes login attempts from logouts in the audit trail.
type Event string

const (
	EventLogin  Event = "login"
	EventLogout Event = "logout"
)

// AuditRecord is one append-only entry of the audit trail. AccountID is nil
// when the submitted email did not resolve to an account.
type AuditRecord struct {
	ID            string    `json:"id"`
	AccountID     *string   `json:"accountId"`
	Email         string    `json:"email"`
	SourceAddress string    `json:"sourceAddress"`
	UserAgent     string    `json:"userAgent"`
	Event         Event     `json:"event"`
	Success       bool      `json:"success"`
	Reason        Reason    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}
