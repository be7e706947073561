package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteAccountColumns = `id, display_name, email, password_scheme, password_params, password_salt,
		password_digest, role, active, failed_attempts, locked_until, last_login_at, created_at`

// SQLiteRepository stores timestamps as Unix nanoseconds in INTEGER columns.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, display_name, email, password_scheme, password_params,
		 password_salt, password_digest, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.DisplayName, account.Email,
		account.Password.Scheme, account.Password.Params, account.Password.Salt, account.Password.Digest,
		string(account.Role), account.Active, account.CreatedAt.UnixNano())

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch code := sqliteErr.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		// primary result code only, when extended codes are off
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	default:
		return false
	}
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + sqliteAccountColumns + ` FROM accounts WHERE lower(email) = lower(?)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + sqliteAccountColumns + ` FROM accounts WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) scanOne(row *sql.Row) (*models.Account, error) {
	var (
		a           models.Account
		role        string
		lockedUntil sql.NullInt64
		lastLoginAt sql.NullInt64
		createdAt   int64
	)

	err := row.Scan(&a.ID, &a.DisplayName, &a.Email, &a.Password.Scheme, &a.Password.Params,
		&a.Password.Salt, &a.Password.Digest, &role, &a.Active, &a.FailedAttempts,
		&lockedUntil, &lastLoginAt, &createdAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.Role = models.Role(role)
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.LockedUntil = fromUnixNano(lockedUntil)
	a.LastLoginAt = fromUnixNano(lastLoginAt)

	return &a, nil
}

func (r *SQLiteRepository) UpdateLockoutState(ctx context.Context, id string, state models.LockoutState) error {
	query :=
		`UPDATE accounts
		 SET failed_attempts = ?, locked_until = ?, last_login_at = COALESCE(?, last_login_at)
		 WHERE id = ?`
	args := []any{state.FailedAttempts, toUnixNano(state.LockedUntil), toUnixNano(state.LastLoginAt), id}

	if state.ExpectedFailedAttempts != nil {
		query += ` AND failed_attempts = ?`
		args = append(args, *state.ExpectedFailedAttempts)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return checkUpdated(res, state.ExpectedFailedAttempts != nil)
}

func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return checkUpdated(res, false)
}

func toUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromUnixNano(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
