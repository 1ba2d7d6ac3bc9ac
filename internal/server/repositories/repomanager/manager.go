// Package repomanager vends account repositories bound to a storage backend
// and runs repository work inside a transaction.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/accounts"
)

// RepositoryManager is the persistence entry point used by services.
type RepositoryManager interface {
	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error
	// Accounts returns a repository outside of any transaction.
	Accounts() accounts.Repository
	// WithinTx runs fn with a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error
	Close() error
}
