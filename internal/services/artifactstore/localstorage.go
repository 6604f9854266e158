package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps artifacts as <root>/<id>.png on a (possibly shared)
// filesystem volume.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("volume directory is not set")
	}

	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.root, FileName(id))
}

func (s *LocalStore) Put(ctx context.Context, id string, content []byte) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	filedest := s.path(id)
	if err := os.MkdirAll(filepath.Dir(filedest), os.ModePerm); err != nil {
		return ioError("mkdir", id, err)
	}

	// write to a temp file first so readers never observe a partial artifact
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return ioError("create", id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return ioError("write", id, err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("close", id, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return ioError("chmod", id, err)
	}
	if err := os.Rename(tmp.Name(), filedest); err != nil {
		return ioError("rename", id, err)
	}

	return nil
}

func (s *LocalStore) Get(ctx context.Context, id string) ([]byte, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	content, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("read", id, err)
	}

	return content, nil
}

func (s *LocalStore) Exists(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	info, err := os.Stat(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("stat", id, err)
	}

	return info.Mode().IsRegular(), nil
}

func (s *LocalStore) List(ctx context.Context) ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioError("list", s.root, err)
	}

	var artifacts []ArtifactInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, Extension) || strings.HasPrefix(name, ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		artifacts = append(artifacts, ArtifactInfo{
			ID:         strings.TrimSuffix(name, Extension),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	return artifacts, nil
}

func (s *LocalStore) Remove(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioError("remove", id, err)
	}

	return nil
}
