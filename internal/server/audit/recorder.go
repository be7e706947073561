// Package audit delivers audit records to the append-only audit repository.
//
// Recording never fails from the caller's point of view: a write error is
// logged and the authentication decision stands.
package audit

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	auditrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/audit"
)

type Recorder interface {
	Record(ctx context.Context, record *models.AuditRecord)
}

// Sync writes each record before returning.
type Sync struct {
	repo   auditrepo.Repository
	logger logging.Logger
}

func NewSync(repo auditrepo.Repository, logger logging.Logger) *Sync {
	return &Sync{repo: repo, logger: logger}
}

func (s *Sync) Record(ctx context.Context, record *models.AuditRecord) {
	write(context.WithoutCancel(ctx), s.repo, s.logger, record)
}

func write(ctx context.Context, repo auditrepo.Repository, logger logging.Logger, record *models.AuditRecord) {
	if err := repo.Append(ctx, record); err != nil {
		logger.Error(ctx, "audit write failed", "error", err,
			"event", record.Event, "reason", record.Reason, "email", record.Email)
	}
}
