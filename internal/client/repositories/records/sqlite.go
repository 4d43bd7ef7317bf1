package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/dbx"
)

const selectColumns = `id, text, repeat_count, target_count, date_created, updated_at,
	last_practiced_at, is_archived, audio_file_name, version_token`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Times are stored as unix nanoseconds so equality survives a round trip.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		r         models.Record
		created   int64
		updated   int64
		practiced sql.NullInt64
		archived  int64
		token     []byte
	)
	err := s.Scan(&r.ID, &r.Text, &r.RepeatCount, &r.TargetCount, &created, &updated,
		&practiced, &archived, &r.AudioFileName, &token)
	if err != nil {
		return nil, err
	}

	r.DateCreated = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	if practiced.Valid {
		t := fromNanos(practiced.Int64)
		r.LastPracticedAt = &t
	}
	r.IsArchived = archived != 0
	if len(token) > 0 {
		r.VersionToken = token
	}
	return &r, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetAllActive(ctx context.Context) ([]*models.Record, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM records
		WHERE is_archived = 0 ORDER BY date_created, id`)
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.Record, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM records ORDER BY date_created, id`)
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.Record) error {
	var practiced sql.NullInt64
	if rec.LastPracticedAt != nil {
		practiced = sql.NullInt64{Int64: toNanos(*rec.LastPracticedAt), Valid: true}
	}
	archived := 0
	if rec.IsArchived {
		archived = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (id, text, repeat_count, target_count, date_created, updated_at,
			last_practiced_at, is_archived, audio_file_name, version_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			repeat_count = excluded.repeat_count,
			target_count = excluded.target_count,
			date_created = excluded.date_created,
			updated_at = excluded.updated_at,
			last_practiced_at = excluded.last_practiced_at,
			is_archived = excluded.is_archived,
			audio_file_name = excluded.audio_file_name,
			version_token = excluded.version_token
	`, rec.ID, rec.Text, rec.RepeatCount, rec.TargetCount, toNanos(rec.DateCreated), toNanos(rec.UpdatedAt),
		practiced, archived, rec.AudioFileName, rec.VersionToken)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}
