package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/google/uuid"
)

var ErrEmptyText = errors.New("text must not be empty")

// LocalStore is the record storage the service edits.
type LocalStore interface {
	Fetch(ctx context.Context, id string) (*models.Record, error)
	FetchAll(ctx context.Context) ([]*models.Record, error)
	FetchAllActive(ctx context.Context) ([]*models.Record, error)
	Save(ctx context.Context, origin localstore.Origin, fn func(ctx context.Context, b *localstore.Batch) error) (localstore.ChangeSet, error)
}

// AudioFiles stores the audio attachments of records.
type AudioFiles interface {
	ImportFile(id, hostPath string) (string, error)
	Remove(id string) error
}

// DeleteQueue queues remote deletes. Uploads are queued by the local
// store listener.
type DeleteQueue interface {
	EnqueueDelete(ctx context.Context, id string) error
}

type RecordService interface {
	Create(ctx context.Context, text string, targetCount int64) (*models.Record, error)
	List(ctx context.Context, includeArchived bool) ([]*models.Record, error)
	Get(ctx context.Context, id string) (*models.Record, error)
	Edit(ctx context.Context, id string, text string, targetCount int64) (*models.Record, error)
	Practice(ctx context.Context, id string) (*models.Record, error)
	Archive(ctx context.Context, id string) (*models.Record, error)
	Restore(ctx context.Context, id string) (*models.Record, error)
	Delete(ctx context.Context, id string) error
	AttachAudio(ctx context.Context, id string, hostPath string) (*models.Record, error)
}

type recordService struct {
	local  LocalStore
	files  AudioFiles
	queue  DeleteQueue
	now    func() time.Time
	nextID func() string
}

func NewRecordService(local LocalStore, files AudioFiles, queue DeleteQueue) RecordService {
	return &recordService{local: local, files: files, queue: queue, now: time.Now, nextID: newRecordID}
}

func newRecordID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func (s *recordService) Create(ctx context.Context, text string, targetCount int64) (*models.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	now := s.now().UTC()
	r := &models.Record{
		ID:          s.nextID(),
		Text:        text,
		TargetCount: max(targetCount, 0),
		DateCreated: now,
		UpdatedAt:   now,
	}
	_, err := s.local.Save(ctx, localstore.OriginLocal, func(ctx context.Context, b *localstore.Batch) error {
		return b.Upsert(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	return r, nil
}

func (s *recordService) List(ctx context.Context, includeArchived bool) ([]*models.Record, error) {
	if includeArchived {
		return s.local.FetchAll(ctx)
	}
	return s.local.FetchAllActive(ctx)
}

// Get returns common.ErrorNotFound for unknown ids.
func (s *recordService) Get(ctx context.Context, id string) (*models.Record, error) {
	r, err := s.local.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, common.ErrorNotFound
	}
	return r, nil
}

// mutate applies fn to record id and stamps it as modified now.
func (s *recordService) mutate(ctx context.Context, id string, fn func(r *models.Record) error) (*models.Record, error) {
	var out *models.Record
	_, err := s.local.Save(ctx, localstore.OriginLocal, func(ctx context.Context, b *localstore.Batch) error {
		r, err := b.Fetch(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return common.ErrorNotFound
		}
		if err := fn(r); err != nil {
			return err
		}
		r.Touch(s.now())
		out = r
		return b.Upsert(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *recordService) Edit(ctx context.Context, id string, text string, targetCount int64) (*models.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	return s.mutate(ctx, id, func(r *models.Record) error {
		r.Text = text
		if targetCount > 0 {
			r.TargetCount = targetCount
		}
		return nil
	})
}

// Practice counts one repetition of the affirmation.
func (s *recordService) Practice(ctx context.Context, id string) (*models.Record, error) {
	return s.mutate(ctx, id, func(r *models.Record) error {
		now := s.now().UTC()
		r.RepeatCount++
		r.LastPracticedAt = &now
		return nil
	})
}

func (s *recordService) Archive(ctx context.Context, id string) (*models.Record, error) {
	return s.mutate(ctx, id, func(r *models.Record) error {
		r.IsArchived = true
		return nil
	})
}

func (s *recordService) Restore(ctx context.Context, id string) (*models.Record, error) {
	return s.mutate(ctx, id, func(r *models.Record) error {
		r.IsArchived = false
		return nil
	})
}

// Delete queues the remote delete and then removes the record and its
// audio locally.
func (s *recordService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if s.queue != nil {
		if err := s.queue.EnqueueDelete(ctx, id); err != nil {
			return fmt.Errorf("queue delete: %w", err)
		}
	}
	_, err := s.local.Save(ctx, localstore.OriginLocal, func(ctx context.Context, b *localstore.Batch) error {
		_, err := b.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.files.Remove(id); err != nil {
		return fmt.Errorf("remove audio: %w", err)
	}
	return nil
}

// AttachAudio copies the file at hostPath into the asset store as the
// audio of record id.
func (s *recordService) AttachAudio(ctx context.Context, id string, hostPath string) (*models.Record, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	p, err := s.files.ImportFile(id, hostPath)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(r *models.Record) error {
		r.AudioFileName = p
		return nil
	})
}
