package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// FileDirectory stores users as a JSON array, the users.json layout.
// A missing file is an empty directory.
type FileDirectory struct {
	path string
	mu   sync.Mutex
}

func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{path: path}
}

func (d *FileDirectory) Path() string {
	return d.path
}

func (d *FileDirectory) LoadAll(ctx context.Context) ([]domain.EnrolledUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.EnrolledUser{}, nil
	}
	if err != nil {
		return nil, domain.ErrDirectoryIO.WithError(fmt.Errorf("read %s: %w", d.path, err))
	}

	if len(data) == 0 {
		return []domain.EnrolledUser{}, nil
	}

	var users []domain.EnrolledUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, domain.ErrDirectoryIO.WithError(fmt.Errorf("decode %s: %w", d.path, err))
	}
	if users == nil {
		users = []domain.EnrolledUser{}
	}

	return users, nil
}

// SaveAll replaces the file atomically: readers see either the old or the
// new set, never a partial write.
func (d *FileDirectory) SaveAll(ctx context.Context, users []domain.EnrolledUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if users == nil {
		users = []domain.EnrolledUser{}
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return domain.ErrDirectoryIO.WithError(fmt.Errorf("encode users: %w", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := writeFileAtomic(d.path, data); err != nil {
		return domain.ErrDirectoryIO.WithError(err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	return nil
}

var _ Directory = (*FileDirectory)(nil)
