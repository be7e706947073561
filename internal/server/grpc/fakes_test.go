package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// ---- fakes ----

type fakeService struct {
	mu  sync.Mutex
	err error

	gotEmail, gotPassword, gotToken string
	gotClient                       services.ClientInfo
	gotLimit, gotOffset             int
	rateLimitedEmails               []string
}

var publicAna = models.PublicAccount{ID: "acc-1", DisplayName: "Ana", Email: "ana@x.com", Role: models.RoleStandard}

func (f *fakeService) Register(ctx context.Context, displayName, email, password string) (*models.PublicAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotEmail, f.gotPassword = email, password
	if f.err != nil {
		return nil, f.err
	}
	a := publicAna
	return &a, nil
}

func (f *fakeService) Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotEmail, f.gotPassword, f.gotClient = email, password, client
	if f.err != nil {
		return nil, f.err
	}
	return &services.LoginResult{Token: "tok", ExpiresAt: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), Account: publicAna}, nil
}

func (f *fakeService) RejectRateLimited(ctx context.Context, email string, client services.ClientInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimitedEmails = append(f.rateLimitedEmails, email)
	return common.ErrRateLimited
}

func (f *fakeService) VerifyToken(ctx context.Context, token string) (*models.PublicAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	a := publicAna
	return &a, nil
}

func (f *fakeService) Logout(ctx context.Context, token string, client services.ClientInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotToken, f.gotClient = token, client
	return f.err
}

func (f *fakeService) AuditLog(ctx context.Context, token string, limit, offset int) ([]*models.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotToken, f.gotLimit, f.gotOffset = token, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return []*models.AuditRecord{{ID: "r1", Event: models.EventLogin, Reason: models.ReasonSuccess, Success: true}}, nil
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.err
}

var _ ratelimit.Limiter = (*stubLimiter)(nil)
