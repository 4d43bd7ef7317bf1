package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/habitsync/internal/dbx"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/memory"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/users"
)

// InMemoryRepositoryManager keeps all data in process memory. Transactions
// run one at a time and a failed one restores the state it started from.
type InMemoryRepositoryManager struct {
	txMu  sync.Mutex
	store *memory.Store

	users         *memory.Users
	refreshTokens *memory.RefreshTokens
	records       *memory.Records
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	s := memory.NewStore()
	return &InMemoryRepositoryManager{
		store:         s,
		users:         memory.NewUsers(s),
		refreshTokens: memory.NewRefreshTokens(s),
		records:       memory.NewRecords(s),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) DB() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) Close() error { return nil }

func (m *InMemoryRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.store.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.store.Restore(snap)
			panic(p)
		}
		if err != nil {
			m.store.Restore(snap)
		}
	}()

	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refreshTokens
}

func (m *InMemoryRepositoryManager) Records(dbx.DBTX) records.Repository { return m.records }
