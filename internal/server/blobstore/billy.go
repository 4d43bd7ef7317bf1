package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/filex"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// BillyStore keeps blobs as files, one per key.
type BillyStore struct {
	fs billy.Filesystem
}

func NewBillyStore(fs billy.Filesystem) *BillyStore {
	return &BillyStore{fs: fs}
}

// NewMemoryStore keeps blobs in memory only.
func NewMemoryStore() *BillyStore {
	return NewBillyStore(memfs.New())
}

// NewDirStore keeps blobs under dir on the local disk.
func NewDirStore(dir string) *BillyStore {
	return NewBillyStore(osfs.New(dir))
}

func (s *BillyStore) Put(_ context.Context, key string, data []byte) error {
	return filex.WriteFileAtomic(s.fs, key, data)
}

func (s *BillyStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("billy: read %q: %w", key, err)
	}
	return data, nil
}

func (s *BillyStore) Delete(_ context.Context, key string) error {
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("billy: remove %q: %w", key, err)
	}
	return nil
}
