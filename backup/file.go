package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/warp/absence-tracker/absence"
)

// FileSink keeps archives as files in one directory.
type FileSink struct {
	root string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink returns a sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "./backups"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}
	return &FileSink{root: dir}, nil
}

func (s *FileSink) Driver() Driver { return DriverFilesystem }

// Put writes to a temp file and renames it, so a crash never leaves a
// truncated archive under the final key.
func (s *FileSink) Put(_ context.Context, key string, r io.Reader) (Archive, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Archive{}, &absence.ValidationError{Field: "key", Message: err.Error()}
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return Archive{}, fmt.Errorf("failed to create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return Archive{}, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Archive{}, fmt.Errorf("failed to write archive: %w", err)
	}

	final := filepath.Join(s.root, k)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Archive{}, fmt.Errorf("failed to store archive: %w", err)
	}
	return stat(final, k)
}

func (s *FileSink) Get(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return nil, &absence.ValidationError{Field: "key", Message: err.Error()}
	}
	f, err := os.Open(filepath.Join(s.root, k))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &absence.NotFoundError{Kind: "backup", ID: k}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return f, nil
}

func (s *FileSink) List(_ context.Context) ([]Archive, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	archives := make([]Archive, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !isArchiveName(de.Name()) {
			continue
		}
		a, err := stat(filepath.Join(s.root, de.Name()), de.Name())
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Key < archives[j].Key })
	return archives, nil
}

func stat(p, key string) (Archive, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Archive{}, fmt.Errorf("failed to stat archive: %w", err)
	}
	return Archive{Key: key, Size: info.Size(), CreatedAt: info.ModTime().UTC()}, nil
}
