// Package repomanager hands out repositories bound to either the shared
// connection or a transaction, for PostgreSQL and in-memory storage.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/habitsync/internal/dbx"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// DB is the connection repositories use outside of a transaction.
	DB() dbx.DBTX
	// InTx runs fn in a transaction that commits when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Close() error

	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
}
