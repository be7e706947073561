// Package accounts is the account half of the credential store adapter: it
// reads and writes Account records and holds no business logic.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository persists accounts. Email lookups are case-insensitive and the
// backing store enforces email uniqueness, so Insert reports
// common.ErrDuplicateEmail even when two registrations race past a lookup.
//
// Find methods return common.ErrorNotFound when nothing matches.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Insert(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateLockoutState(ctx context.Context, id string, state models.LockoutState) error
	SetActive(ctx context.Context, id string, active bool) error
}
