// Package codec converts records to and from their remote representation.
//
// Every scalar field is always written; an absent optional value becomes
// an explicit nil so the remote copy is cleared too. The audio asset is
// the exception: it is attached only when the file is present locally
// and is otherwise left out, never nulled. Version tokens pass through
// untouched in both directions.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/common"
)

// Remote field names.
const (
	FieldText            = "text"
	FieldRepeatCount     = "repeatCount"
	FieldTargetCount     = "targetCount"
	FieldDateCreated     = "dateCreated"
	FieldUpdatedAt       = "updatedAt"
	FieldLastPracticedAt = "lastPracticedAt"
	FieldIsArchived      = "isArchived"
)

var ErrInvalidField = errors.New("invalid remote field")

// AssetChecker reports whether an asset file is present.
type AssetChecker interface {
	Exists(path string) (bool, error)
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Encode builds the remote representation of r.
func Encode(r *models.Record, files AssetChecker) (models.RemoteRecord, error) {
	out := models.RemoteRecord{
		ID:   r.ID,
		Type: common.RecordTypeAffirmation,
		Fields: map[string]any{
			FieldText:            r.Text,
			FieldRepeatCount:     r.RepeatCount,
			FieldTargetCount:     r.TargetCount,
			FieldDateCreated:     formatTime(r.DateCreated),
			FieldUpdatedAt:       formatTime(r.UpdatedAt),
			FieldLastPracticedAt: nil,
			FieldIsArchived:      r.IsArchived,
		},
		VersionToken: bytes.Clone(r.VersionToken),
	}

	if r.LastPracticedAt != nil {
		out.Fields[FieldLastPracticedAt] = formatTime(*r.LastPracticedAt)
	}

	if r.AudioFileName != "" && files != nil {
		ok, err := files.Exists(r.AudioFileName)
		if err != nil {
			return models.RemoteRecord{}, fmt.Errorf("check asset of %s: %w", r.ID, err)
		}
		if ok {
			out.Asset = &models.AssetRef{Path: r.AudioFileName}
		}
	}

	return out, nil
}

// Decode builds a record from its remote representation. Unknown fields
// are ignored, nil fields decode to their zero value.
func Decode(in models.RemoteRecord) (*models.Record, error) {
	r := &models.Record{
		ID:           in.ID,
		VersionToken: bytes.Clone(in.VersionToken),
	}

	var err error
	if r.Text, err = stringField(in.Fields, FieldText); err != nil {
		return nil, err
	}
	if r.RepeatCount, err = intField(in.Fields, FieldRepeatCount); err != nil {
		return nil, err
	}
	if r.TargetCount, err = intField(in.Fields, FieldTargetCount); err != nil {
		return nil, err
	}
	if r.IsArchived, err = boolField(in.Fields, FieldIsArchived); err != nil {
		return nil, err
	}

	created, err := timeField(in.Fields, FieldDateCreated)
	if err != nil {
		return nil, err
	}
	if created != nil {
		r.DateCreated = *created
	}

	updated, err := timeField(in.Fields, FieldUpdatedAt)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		r.UpdatedAt = *updated
	}

	if r.LastPracticedAt, err = timeField(in.Fields, FieldLastPracticedAt); err != nil {
		return nil, err
	}

	if in.Asset != nil {
		r.AudioFileName = in.Asset.Path
	}

	return r, nil
}

func invalid(name string, v any) error {
	return fmt.Errorf("%w: %s has type %T", ErrInvalidField, name, v)
}

func stringField(f map[string]any, name string) (string, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(name, v)
	}
	return s, nil
}

func boolField(f map[string]any, name string) (bool, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(name, v)
	}
	return b, nil
}

// intField accepts the numeric shapes a value can take after crossing
// JSON or protobuf: Go integers, float64 and json.Number.
func intField(f map[string]any, name string) (int64, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid(name, v)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidField, name, err)
		}
		return i, nil
	default:
		return 0, invalid(name, v)
	}
}

func timeField(f map[string]any, name string) (*time.Time, error) {
	v, ok := f[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, name, err)
		}
		parsed = parsed.UTC()
		return &parsed, nil
	case time.Time:
		u := t.UTC()
		return &u, nil
	default:
		return nil, invalid(name, v)
	}
}
