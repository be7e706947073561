package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	auditrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/audit"
	"github.com/google/uuid"
)

// ---- store ----

type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	records  []*models.AuditRecord

	findErr   error
	updateErr error
	listErr   error
	conflicts int

	findCalls int
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*models.Account)}
}

func (m *memStore) Accounts() accounts.Repository { return &memAccounts{m} }
func (m *memStore) Audit() auditrepo.Repository   { return &memAudit{m} }

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error {
	return fn(ctx, &memAccounts{m})
}

func (m *memStore) byEmail(email string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c
		}
	}
	return nil
}

type memAccounts struct{ m *memStore }

func (r *memAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.m.mu.Lock()
	r.m.findCalls++
	err := r.m.findErr
	r.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if a := r.m.byEmail(email); a != nil {
		return a, nil
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.findErr != nil {
		return nil, r.m.findErr
	}
	a, ok := r.m.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *a
	return &c, nil
}

func (r *memAccounts) Insert(ctx context.Context, a *models.Account) (*models.Account, error) {
	if r.m.byEmail(a.Email) != nil {
		return nil, common.ErrDuplicateEmail
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	c := *a
	r.m.accounts[a.ID] = &c
	return a, nil
}

func (r *memAccounts) UpdateLockoutState(ctx context.Context, id string, s models.LockoutState) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.updateErr != nil {
		return r.m.updateErr
	}
	a, ok := r.m.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	if s.ExpectedFailedAttempts != nil {
		if r.m.conflicts > 0 {
			r.m.conflicts--
			return common.ErrVersionConflict
		}
		if *s.ExpectedFailedAttempts != a.FailedAttempts {
			return common.ErrVersionConflict
		}
	}
	a.FailedAttempts = s.FailedAttempts
	a.LockedUntil = s.LockedUntil
	if s.LastLoginAt != nil {
		a.LastLoginAt = s.LastLoginAt
	}
	return nil
}

func (r *memAccounts) SetActive(ctx context.Context, id string, active bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.Active = active
	return nil
}

type memAudit struct{ m *memStore }

func (r *memAudit) Append(ctx context.Context, rec *models.AuditRecord) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.records = append(r.m.records, rec)
	return nil
}

func (r *memAudit) List(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.listErr != nil {
		return nil, r.m.listErr
	}
	var out []*models.AuditRecord
	for i := len(r.m.records) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.m.records[i])
	}
	return out, nil
}

func (r *memAudit) ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	return nil, errors.New("not used")
}

// ---- hasher ----

type plainHasher struct {
	mu          sync.Mutex
	hashErr     error
	verifyErr   error
	verifyCalls int
}

func (h *plainHasher) Hash(ctx context.Context, p string) (models.PasswordHash, error) {
	if h.hashErr != nil {
		return models.PasswordHash{}, h.hashErr
	}
	return models.PasswordHash{Scheme: "plain", Digest: []byte(p)}, nil
}

func (h *plainHasher) Verify(ctx context.Context, p string, stored models.PasswordHash) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	if h.verifyErr != nil {
		return false, h.verifyErr
	}
	if stored.Scheme != "plain" {
		return false, password.ErrHashingFailure
	}
	return string(stored.Digest) == p, nil
}

func (h *plainHasher) NeedsRehash(models.PasswordHash) bool { return false }

func (h *plainHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifyCalls
}

// ---- audit ----

type captureRecorder struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (c *captureRecorder) Record(ctx context.Context, r *models.AuditRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}

func (c *captureRecorder) all() []*models.AuditRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.AuditRecord(nil), c.records...)
}

func (c *captureRecorder) last() *models.AuditRecord {
	all := c.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

type fakeArchiver struct {
	from, to time.Time
	err      error
}

func (f *fakeArchiver) Archive(ctx context.Context, from, to time.Time) (*audit.ArchiveResult, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return &audit.ArchiveResult{Key: "audit/x.jsonl", Records: 3}, nil
}

// ---- clock ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
