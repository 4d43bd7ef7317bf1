package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/habitsync/internal/client/migrations"
)

// InitDatabase opens the SQLite database at dsn and migrates it. The pool
// is limited to one connection so every caller shares one transaction
// view of the file.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
