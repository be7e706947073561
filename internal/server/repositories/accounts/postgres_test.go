package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "0b5c3a64-4f52-4a0e-9f3e-2a1c5e8f7d10"

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, func() { _ = db.Close() }
}

func newAccount() *models.Account {
	return &models.Account{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    models.PasswordHash{Scheme: "bcrypt", Digest: []byte("digest")},
		Role:        models.RoleStandard,
		Active:      true,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func accountRow(mock sqlmock.Sqlmock) *sqlmock.Rows {
	locked := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)
	return mock.NewRows([]string{"id", "display_name", "email", "password_scheme", "password_params",
		"password_salt", "password_digest", "role", "active", "failed_attempts", "locked_until",
		"last_login_at", "created_at"}).
		AddRow(testID, "Alice", "alice@example.com", "bcrypt", "", []byte(nil), []byte("digest"),
			"administrator", true, 3, locked, nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestPostgres_Insert_Success(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts`).
		WithArgs(sqlmock.AnyArg(), "Alice", "alice@example.com", "bcrypt", "", []byte(nil), []byte("digest"),
			"standard", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Insert(context.Background(), newAccount())
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Insert_Duplicate(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Insert(context.Background(), newAccount())
	require.ErrorIs(t, err, common.ErrDuplicateEmail)
}

func TestPostgres_Insert_DBError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts`).
		WillReturnError(errors.New("conn reset"))

	_, err := repo.Insert(context.Background(), newAccount())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrDuplicateEmail)
	assert.Contains(t, err.Error(), "db error")
}

func TestPostgres_FindByEmail_Found(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`(?s)^SELECT .* FROM accounts\s+WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("ALICE@example.com").
		WillReturnRows(accountRow(mock))

	got, err := repo.FindByEmail(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, testID, got.ID)
	assert.Equal(t, models.RoleAdministrator, got.Role)
	assert.Equal(t, 3, got.FailedAttempts)
	require.NotNil(t, got.LockedUntil)
	assert.Nil(t, got.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByEmail_NotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`(?s)^SELECT .* FROM accounts`).
		WillReturnRows(mock.NewRows([]string{"id"}))

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_FindByID_InvalidUUID(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByID_Found(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`(?s)^SELECT .* FROM accounts\s+WHERE id = \$1`).
		WithArgs(testID).
		WillReturnRows(accountRow(mock))

	got, err := repo.FindByID(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestPostgres_UpdateLockoutState_Conditional(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	expected := 2
	mock.ExpectExec(`(?s)^UPDATE accounts\s+SET failed_attempts = \$2.*WHERE id = \$1 AND failed_attempts = \$5`).
		WithArgs(testID, 3, nil, nil, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLockoutState(context.Background(), testID, models.LockoutState{
		FailedAttempts:         3,
		ExpectedFailedAttempts: &expected,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateLockoutState_Conflict(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	expected := 2
	mock.ExpectExec(`(?s)^UPDATE accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateLockoutState(context.Background(), testID, models.LockoutState{
		FailedAttempts:         3,
		ExpectedFailedAttempts: &expected,
	})
	require.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestPostgres_UpdateLockoutState_Unconditional(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^UPDATE accounts\s+SET .*WHERE id = \$1$`).
		WithArgs(testID, 0, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLockoutState(context.Background(), testID, models.LockoutState{LastLoginAt: &now})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetActive_NotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec(`(?s)^UPDATE accounts SET active = \$2`).
		WithArgs(testID, false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), testID, false)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
