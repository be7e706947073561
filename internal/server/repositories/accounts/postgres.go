package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const pgAccountColumns = `id, display_name, email, password_scheme, password_params, password_salt,
		password_digest, role, active, failed_attempts, locked_until, last_login_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO accounts (id, display_name, email, password_scheme, password_params,
		 password_salt, password_digest, role, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 `

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.DisplayName, account.Email,
		account.Password.Scheme, account.Password.Params, account.Password.Salt, account.Password.Digest,
		string(account.Role), account.Active, account.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + pgAccountColumns + ` FROM accounts
		 WHERE lower(email) = lower($1)
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + pgAccountColumns + ` FROM accounts
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Account, error) {
	var (
		a           models.Account
		role        string
		lockedUntil sql.NullTime
		lastLoginAt sql.NullTime
	)

	err := row.Scan(&a.ID, &a.DisplayName, &a.Email, &a.Password.Scheme, &a.Password.Params,
		&a.Password.Salt, &a.Password.Digest, &role, &a.Active, &a.FailedAttempts,
		&lockedUntil, &lastLoginAt, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.Role = models.Role(role)
	if lockedUntil.Valid {
		t := lockedUntil.Time
		a.LockedUntil = &t
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		a.LastLoginAt = &t
	}

	return &a, nil
}

// UpdateLockoutState writes the counters read-modify-written by the caller.
// With state.ExpectedFailedAttempts set, a concurrent change of the counter
// yields common.ErrVersionConflict instead of a lost update.
func (r *PostgresRepository) UpdateLockoutState(ctx context.Context, id string, state models.LockoutState) error {
	query :=
		`UPDATE accounts
		 SET failed_attempts = $2, locked_until = $3, last_login_at = COALESCE($4::timestamptz, last_login_at)
		 WHERE id = $1`
	args := []any{id, state.FailedAttempts, state.LockedUntil, state.LastLoginAt}

	if state.ExpectedFailedAttempts != nil {
		query += ` AND failed_attempts = $5`
		args = append(args, *state.ExpectedFailedAttempts)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return checkUpdated(res, state.ExpectedFailedAttempts != nil)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	query :=
		`UPDATE accounts SET active = $2
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return checkUpdated(res, false)
}

// checkUpdated maps "no row changed" to ErrVersionConflict for conditional
// writes (the row was read moments before) and to ErrorNotFound otherwise.
func checkUpdated(res sql.Result, conditional bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		if conditional {
			return common.ErrVersionConflict
		}
		return common.ErrorNotFound
	}
	return nil
}
