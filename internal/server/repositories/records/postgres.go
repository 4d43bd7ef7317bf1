package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/dbx"
	"github.com/dmitrijs2005/habitsync/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const zoneColumns = `user_id, name, generation, seq, subscribed, created_at`

func scanZone(row *sql.Row) (*models.Zone, error) {
	z := &models.Zone{}
	err := row.Scan(&z.UserID, &z.Name, &z.Generation, &z.Seq, &z.Subscribed, &z.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return z, nil
}

func (r *PostgresRepository) EnsureZone(ctx context.Context, userID, zone, generation string) (*models.Zone, error) {
	query := `
		INSERT INTO zones (user_id, name, generation)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING ` + zoneColumns
	return scanZone(r.db.QueryRowContext(ctx, query, userID, zone, generation))
}

func (r *PostgresRepository) GetZone(ctx context.Context, userID, zone string) (*models.Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE user_id = $1 AND name = $2`
	return scanZone(r.db.QueryRowContext(ctx, query, userID, zone))
}

func (r *PostgresRepository) LockZone(ctx context.Context, userID, zone string) (*models.Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE user_id = $1 AND name = $2 FOR UPDATE`
	return scanZone(r.db.QueryRowContext(ctx, query, userID, zone))
}

func (r *PostgresRepository) SetSubscribed(ctx context.Context, userID, zone string) error {
	query := `UPDATE zones SET subscribed = TRUE WHERE user_id = $1 AND name = $2`
	res, err := r.db.ExecContext(ctx, query, userID, zone)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) NextSeq(ctx context.Context, userID, zone string) (int64, error) {
	query := `
		UPDATE zones SET seq = seq + 1
		WHERE user_id = $1 AND name = $2
		RETURNING seq
	`
	var seq int64
	if err := r.db.QueryRowContext(ctx, query, userID, zone).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

const recordColumns = `user_id, zone, id, type, fields, asset_checksum, version_token, seq, deleted, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	rec := &models.Record{}
	err := s.Scan(&rec.UserID, &rec.Zone, &rec.ID, &rec.Type, &rec.Fields,
		&rec.AssetChecksum, &rec.VersionToken, &rec.Seq, &rec.Deleted, &rec.UpdatedAt)
	return rec, err
}

func (r *PostgresRepository) Get(ctx context.Context, userID, zone, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE user_id = $1 AND zone = $2 AND id = $3`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, zone, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (user_id, zone, id, type, fields, asset_checksum, version_token, seq, deleted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, zone, id)
		DO UPDATE SET
			type = EXCLUDED.type,
			fields = EXCLUDED.fields,
			asset_checksum = EXCLUDED.asset_checksum,
			version_token = EXCLUDED.version_token,
			seq = EXCLUDED.seq,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
	`
	fields := rec.Fields
	if fields == nil {
		fields = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.UserID, rec.Zone, rec.ID, rec.Type, fields, rec.AssetChecksum,
		rec.VersionToken, rec.Seq, rec.Deleted, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListSince(ctx context.Context, userID, zone string, seq int64, limit int) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE user_id = $1 AND zone = $2 AND seq > $3
		ORDER BY seq
		LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, userID, zone, seq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
