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

// SQLiteRepository stores created_at as Unix nanoseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	var accountID sql.NullString
	if record.AccountID != nil {
		accountID = sql.NullString{String: *record.AccountID, Valid: true}
	}

	query :=
		`INSERT INTO audit_records (` + auditColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, accountID, record.Email, record.SourceAddress, record.UserAgent,
		string(record.Event), record.Success, string(record.Reason), record.Timestamp.UnixNano())

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditRecord, error) {
	query :=
		`SELECT ` + auditColumns + ` FROM audit_records
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanSQLiteRows(rows)
}

func (r *SQLiteRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditRecord, error) {
	query :=
		`SELECT ` + auditColumns + ` FROM audit_records
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at, rowid`

	rows, err := r.db.QueryContext(ctx, query, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanSQLiteRows(rows)
}

func scanSQLiteRows(rows *sql.Rows) ([]*models.AuditRecord, error) {
	defer rows.Close()

	var result []*models.AuditRecord
	for rows.Next() {
		var (
			rec       models.AuditRecord
			accountID sql.NullString
			event     string
			reason    string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &accountID, &rec.Email, &rec.SourceAddress, &rec.UserAgent,
			&event, &rec.Success, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if accountID.Valid {
			id := accountID.String
			rec.AccountID = &id
		}
		rec.Event = models.Event(event)
		rec.Reason = models.Reason(reason)
		rec.Timestamp = time.Unix(0, createdAt).UTC()
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
