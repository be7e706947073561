package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/audit"
)

// Store binds a RepositoryManager to an open database.
type Store struct {
	db      *sql.DB
	manager RepositoryManager
}

func NewStore(db *sql.DB, manager RepositoryManager) *Store {
	return &Store{db: db, manager: manager}
}

func (s *Store) Accounts() accounts.Repository {
	return s.manager.Accounts(s.db)
}

func (s *Store) Audit() audit.Repository {
	return s.manager.Audit(s.db)
}

// InTx runs fn with an accounts repository bound to a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.manager.Accounts(tx))
	})
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.manager.RunMigrations(ctx, s.db)
}

func (s *Store) Close() error {
	return s.db.Close()
}
