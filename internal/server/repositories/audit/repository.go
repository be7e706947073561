// Package audit is the audit half of the credential store adapter. The
// repository only appends and reads; nothing here updates or deletes a record.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error)
	// ListBetween returns records with from <= timestamp < to, oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error)
}
