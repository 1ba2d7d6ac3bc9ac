package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/accounts"
)

// InMemoryRepositoryManager serves a single MemoryRepository. WithinTx
// serializes callers; there is no rollback.
type InMemoryRepositoryManager struct {
	mu   sync.Mutex
	repo *accounts.MemoryRepository
}

var _ RepositoryManager = (*InMemoryRepositoryManager)(nil)

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{repo: accounts.NewMemoryRepository()}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) Accounts() accounts.Repository {
	return m.repo
}

func (m *InMemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repo accounts.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m.repo)
}

func (m *InMemoryRepositoryManager) Close() error {
	return nil
}
