// Package assets keeps audio attachments of records in a go-billy file
// system: at rest under a path derived from the record id, and staged
// under a scratch directory while they arrive from the remote store.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/dmitrijs2005/habitsync/internal/cryptox"
	"github.com/dmitrijs2005/habitsync/internal/filex"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	audioDir   = "audio"
	stagingDir = "staging"
	audioExt   = ".m4a"
)

// Path is where the audio of record id lives.
func Path(id string) string {
	return path.Join(audioDir, id+audioExt)
}

type FileStore struct {
	fs billy.Filesystem
}

func NewFileStore(fs billy.Filesystem) *FileStore {
	return &FileStore{fs: fs}
}

// NewOSFileStore roots the store at dir on the local disk.
func NewOSFileStore(dir string) *FileStore {
	return NewFileStore(osfs.New(dir))
}

func (s *FileStore) Exists(p string) (bool, error) {
	return filex.Exists(s.fs, p)
}

func (s *FileStore) Read(p string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, p)
	if err != nil {
		return nil, fmt.Errorf("billy: read %q: %w", p, err)
	}
	return data, nil
}

// Checksum returns the hex sha256 of the file at p.
func (s *FileStore) Checksum(p string) (string, error) {
	data, err := s.Read(p)
	if err != nil {
		return "", err
	}
	return cryptox.Checksum(data), nil
}

// Write stores data as the audio of record id and returns its path.
func (s *FileStore) Write(id string, data []byte) (string, error) {
	p := Path(id)
	if err := filex.WriteFileAtomic(s.fs, p, data); err != nil {
		return "", err
	}
	return p, nil
}

// Stage writes a downloaded blob under the staging directory.
func (s *FileStore) Stage(name string, data []byte) (string, error) {
	p := path.Join(stagingDir, name)
	if err := filex.WriteFileAtomic(s.fs, p, data); err != nil {
		return "", err
	}
	return p, nil
}

// ClearStaging removes every staged blob.
func (s *FileStore) ClearStaging() error {
	if err := util.RemoveAll(s.fs, stagingDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("billy: clear staging: %w", err)
	}
	return nil
}

// Import copies src to the audio path of record id. Nothing is copied
// when src already is that path.
func (s *FileStore) Import(id, src string) (string, bool, error) {
	dst := Path(id)
	copied, err := filex.CopyFile(s.fs, src, dst)
	if err != nil {
		return "", false, err
	}
	return dst, copied, nil
}

// ImportFile copies a file from the host file system (outside the store
// root) into the audio path of record id.
func (s *FileStore) ImportFile(id, hostPath string) (string, error) {
	data, err := os.ReadFile(hostPath)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", hostPath, err)
	}
	return s.Write(id, data)
}

// Remove deletes the audio of record id. A missing file is not an error.
func (s *FileStore) Remove(id string) error {
	p := Path(id)
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("billy: remove %q: %w", p, err)
	}
	return nil
}
