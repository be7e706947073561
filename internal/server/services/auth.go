package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/lockout"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	auditrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/audit"
)

const (
	minPasswordLength = 8
	maxUpdateAttempts = 3

	// hashed once and verified against on unknown emails
	dummyPassword = "authkeeper-unknown-account"

	DefaultAuditPageSize = 50
	MaxAuditPageSize     = 500
)

// Store is the credential store the service reads and writes through.
type Store interface {
	Accounts() accounts.Repository
	Audit() auditrepo.Repository
	InTx(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (models.PasswordHash, error)
	Verify(ctx context.Context, plaintext string, stored models.PasswordHash) (bool, error)
	NeedsRehash(stored models.PasswordHash) bool
}

type TokenIssuer interface {
	Issue(account *models.Account, now time.Time) (string, *auth.Claims, error)
	Verify(token string, now time.Time) (*auth.Claims, error)
}

type AuditArchiver interface {
	Archive(ctx context.Context, from, to time.Time) (*audit.ArchiveResult, error)
}

// ClientInfo describes where a request came from. It is only recorded.
type ClientInfo struct {
	SourceAddress string
	UserAgent     string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   models.PublicAccount
}

type AuthService struct {
	store    Store
	hasher   PasswordHasher
	tokens   TokenIssuer
	policy   lockout.Policy
	recorder audit.Recorder
	archiver AuditArchiver
	logger   logging.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash *models.PasswordHash
}

type Option func(*AuthService)

// WithClock replaces time.Now for lockout and token expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithArchiver enables ArchiveAuditLog.
func WithArchiver(a AuditArchiver) Option {
	return func(s *AuthService) { s.archiver = a }
}

func NewAuthService(store Store, hasher PasswordHasher, tokens TokenIssuer, policy lockout.Policy,
	recorder audit.Recorder, logger logging.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		policy:   policy,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a standard account.
func (s *AuthService) Register(ctx context.Context, displayName, email, plaintext string) (*models.PublicAccount, error) {
	return s.CreateAccount(ctx, displayName, email, plaintext, models.RoleStandard)
}

// CreateAccount creates an active account with the given role. The email
// lookup and the insert share one transaction; the store's unique index on
// the lower-cased email settles concurrent registrations.
func (s *AuthService) CreateAccount(ctx context.Context, displayName, email, plaintext string, role models.Role) (*models.PublicAccount, error) {
	displayName = strings.TrimSpace(displayName)
	email = strings.TrimSpace(email)

	if err := validateRegistration(displayName, email, plaintext); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, role)
	}

	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	account := &models.Account{
		DisplayName: displayName,
		Email:       email,
		Password:    hash,
		Role:        role,
		Active:      true,
		CreatedAt:   s.now().UTC(),
	}

	err = s.store.InTx(ctx, func(ctx context.Context, repo accounts.Repository) error {
		_, err := repo.FindByEmail(ctx, email)
		switch {
		case err == nil:
			return common.ErrDuplicateEmail
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		account, err = repo.Insert(ctx, account)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		s.logger.Error(ctx, "account creation failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "account registered", "account_id", account.ID, "role", account.Role)

	public := account.Public()
	return &public, nil
}

func validateRegistration(displayName, email, plaintext string) error {
	if displayName == "" || email == "" || strings.TrimSpace(plaintext) == "" {
		return fmt.Errorf("%w: display name, email and password are required", common.ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email", common.ErrInvalidInput)
	}
	if len(plaintext) < minPasswordLength || len(plaintext) > password.MaxLength {
		return fmt.Errorf("%w: password must be %d to %d bytes", common.ErrInvalidInput, minPasswordLength, password.MaxLength)
	}
	return nil
}

// outcome is what a login attempt leaves in the audit trail.
type outcome struct {
	accountID *string
	reason    models.Reason
}

// Login authenticates email and password. Every call, whatever the result,
// appends exactly one audit record.
func (s *AuthService) Login(ctx context.Context, email, plaintext string, client ClientInfo) (*LoginResult, error) {
	now := s.now()

	result, out, err := s.login(ctx, email, plaintext, now)

	s.recorder.Record(ctx, &models.AuditRecord{
		AccountID:     out.accountID,
		Email:         email,
		SourceAddress: client.SourceAddress,
		UserAgent:     client.UserAgent,
		Event:         models.EventLogin,
		Success:       out.reason == models.ReasonSuccess,
		Reason:        out.reason,
		Timestamp:     now.UTC(),
	})

	if err != nil {
		s.logger.Info(ctx, "login refused", "reason", out.reason, "source", client.SourceAddress)
		return nil, err
	}

	s.logger.Info(ctx, "login succeeded", "account_id", *out.accountID, "source", client.SourceAddress)
	return result, nil
}

func (s *AuthService) login(ctx context.Context, email, plaintext string, now time.Time) (*LoginResult, outcome, error) {
	if strings.TrimSpace(email) == "" || plaintext == "" {
		return nil, outcome{reason: models.ReasonMissingFields},
			fmt.Errorf("%w: email and password are required", common.ErrInvalidInput)
	}

	repo := s.store.Accounts()

	account, err := repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.verifyDummy(ctx, plaintext)
			return nil, outcome{reason: models.ReasonUnknownAccount}, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return nil, outcome{reason: models.ReasonInternalError}, common.ErrorInternal
	}

	out := outcome{accountID: &account.ID}

	if !account.Active {
		out.reason = models.ReasonInactiveAccount
		return nil, out, common.ErrAccountDisabled
	}

	if s.policy.Evaluate(account, now) == lockout.Locked {
		out.reason = models.ReasonLockedAccount
		return nil, out, &common.LockedError{RetryAfter: s.policy.RetryAfter(account, now)}
	}

	ok, err := s.hasher.Verify(ctx, plaintext, account.Password)
	if err != nil {
		s.logger.Error(ctx, "password verification failed", "account_id", account.ID, "error", err)
		out.reason = models.ReasonInternalError
		return nil, out, common.ErrorInternal
	}

	if !ok {
		if err := s.recordFailure(ctx, repo, account, now); err != nil {
			s.logger.Error(ctx, "persisting failed attempt failed", "account_id", account.ID, "error", err)
			out.reason = models.ReasonInternalError
			return nil, out, common.ErrorInternal
		}
		out.reason = models.ReasonBadCredentials
		return nil, out, common.ErrInvalidCredentials
	}

	state := s.policy.OnSuccess(now.UTC())
	if err := repo.UpdateLockoutState(ctx, account.ID, state); err != nil {
		s.logger.Error(ctx, "persisting login failed", "account_id", account.ID, "error", err)
		out.reason = models.ReasonInternalError
		return nil, out, common.ErrorInternal
	}
	account.FailedAttempts = state.FailedAttempts
	account.LockedUntil = state.LockedUntil
	account.LastLoginAt = state.LastLoginAt

	token, claims, err := s.tokens.Issue(account, now)
	if err != nil {
		s.logger.Error(ctx, "token issue failed", "account_id", account.ID, "error", err)
		out.reason = models.ReasonInternalError
		return nil, out, common.ErrorInternal
	}

	if s.hasher.NeedsRehash(account.Password) {
		s.logger.Debug(ctx, "stored password hash uses outdated parameters", "account_id", account.ID,
			"scheme", account.Password.Scheme)
	}

	out.reason = models.ReasonSuccess
	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAtTime(),
		Account:   account.Public(),
	}, out, nil
}

// verifyDummy spends one verification on a fixed hash, so an unknown email
// takes as long to refuse as a wrong password. The result is discarded.
func (s *AuthService) verifyDummy(ctx context.Context, plaintext string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
		if err != nil {
			s.logger.Error(ctx, "dummy hash failed", "error", err)
			return
		}
		s.dummyHash = &h
	})
	if s.dummyHash == nil {
		return
	}
	if _, err := s.hasher.Verify(ctx, plaintext, *s.dummyHash); err != nil {
		s.logger.Debug(ctx, "dummy verification failed", "error", err)
	}
}

// recordFailure persists one more failed attempt. The write is conditional
// on the counter read at the start of the attempt; on a concurrent change the
// account is re-read and the failure recomputed. When every retry conflicts
// the attempt goes uncounted.
func (s *AuthService) recordFailure(ctx context.Context, repo accounts.Repository, account *models.Account, now time.Time) error {
	current := account
	for i := 0; i < maxUpdateAttempts; i++ {
		err := repo.UpdateLockoutState(ctx, current.ID, s.policy.OnFailure(current, now.UTC()))
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}

		current, err = repo.FindByID(ctx, account.ID)
		if err != nil {
			return err
		}
	}

	s.logger.Warn(ctx, "failed attempt not counted after repeated conflicts", "account_id", account.ID)
	return nil
}

// RejectRateLimited records a login attempt turned away by the request-layer
// limiter and returns common.ErrRateLimited.
func (s *AuthService) RejectRateLimited(ctx context.Context, email string, client ClientInfo) error {
	s.recorder.Record(ctx, &models.AuditRecord{
		Email:         email,
		SourceAddress: client.SourceAddress,
		UserAgent:     client.UserAgent,
		Event:         models.EventLogin,
		Reason:        models.ReasonRateLimited,
		Timestamp:     s.now().UTC(),
	})
	s.logger.Info(ctx, "login rate limited", "source", client.SourceAddress)
	return common.ErrRateLimited
}

// authenticate verifies the token and re-reads the account so that a
// deactivation takes effect before the token expires.
func (s *AuthService) authenticate(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.tokens.Verify(token, s.now())
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	account, err := s.store.Accounts().FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		s.logger.Error(ctx, "account lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !account.Active {
		return nil, common.ErrAccountDisabled
	}

	return account, nil
}

func (s *AuthService) VerifyToken(ctx context.Context, token string) (*models.PublicAccount, error) {
	account, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	public := account.Public()
	return &public, nil
}

// Logout only records the event; tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, token string, client ClientInfo) error {
	account, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, &models.AuditRecord{
		AccountID:     &account.ID,
		Email:         account.Email,
		SourceAddress: client.SourceAddress,
		UserAgent:     client.UserAgent,
		Event:         models.EventLogout,
		Success:       true,
		Reason:        models.ReasonSuccess,
		Timestamp:     s.now().UTC(),
	})
	return nil
}

func (s *AuthService) requireAdministrator(ctx context.Context, token string) (*models.Account, error) {
	account, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if account.Role != models.RoleAdministrator {
		return nil, common.ErrForbidden
	}
	return account, nil
}

// AuditLog returns a page of the audit trail, newest first.
func (s *AuthService) AuditLog(ctx context.Context, token string, limit, offset int) ([]*models.AuditRecord, error) {
	if _, err := s.requireAdministrator(ctx, token); err != nil {
		return nil, err
	}
	return s.ListAudit(ctx, limit, offset)
}

// ListAudit reads the audit trail without an access check; it serves the
// operator CLI.
func (s *AuthService) ListAudit(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	if limit <= 0 {
		limit = DefaultAuditPageSize
	}
	if limit > MaxAuditPageSize {
		limit = MaxAuditPageSize
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.store.Audit().List(ctx, limit, offset)
	if err != nil {
		s.logger.Error(ctx, "audit read failed", "error", err)
		return nil, common.ErrorInternal
	}
	if records == nil {
		records = []*models.AuditRecord{}
	}
	return records, nil
}

// ArchiveAuditLog copies the records of [from, to) to object storage.
func (s *AuthService) ArchiveAuditLog(ctx context.Context, token string, from, to time.Time) (*audit.ArchiveResult, error) {
	admin, err := s.requireAdministrator(ctx, token)
	if err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: archive range is empty", common.ErrInvalidInput)
	}
	if s.archiver == nil {
		s.logger.Error(ctx, "audit archive requested but object storage is not configured")
		return nil, common.ErrorInternal
	}

	res, err := s.archiver.Archive(ctx, from, to)
	if err != nil {
		s.logger.Error(ctx, "audit archive failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "audit archived", "key", res.Key, "records", res.Records, "by", admin.ID)
	return res, nil
}

// SetAccountActive activates or deactivates the account registered under
// email. Deactivation takes effect on the next token verification.
func (s *AuthService) SetAccountActive(ctx context.Context, email string, active bool) error {
	repo := s.store.Accounts()

	account, err := repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if err := repo.SetActive(ctx, account.ID, active); err != nil {
		return err
	}

	s.logger.Info(ctx, "account status changed", "account_id", account.ID, "active", active)
	return nil
}
