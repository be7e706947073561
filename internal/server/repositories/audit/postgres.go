package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

const auditColumns = `id, account_id, email, source_address, user_agent, event, success, reason, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO audit_records (` + auditColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.AccountID, record.Email, record.SourceAddress, record.UserAgent,
		string(record.Event), record.Success, string(record.Reason), record.Timestamp)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	query :=
		`SELECT ` + auditColumns + ` FROM audit_records
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanPostgresRows(rows)
}

func (r *PostgresRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	query :=
		`SELECT ` + auditColumns + ` FROM audit_records
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanPostgresRows(rows)
}

func scanPostgresRows(rows *sql.Rows) ([]*models.AuditRecord, error) {
	defer rows.Close()

	var result []*models.AuditRecord
	for rows.Next() {
		var (
			rec       models.AuditRecord
			accountID sql.NullString
			event     string
			reason    string
		)
		if err := rows.Scan(&rec.ID, &accountID, &rec.Email, &rec.SourceAddress, &rec.UserAgent,
			&event, &rec.Success, &reason, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if accountID.Valid {
			id := accountID.String
			rec.AccountID = &id
		}
		rec.Event = models.Event(event)
		rec.Reason = models.Reason(reason)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
