package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stablegen/gateway/internal/config"
)

// Extension is appended to every identifier to form the stored file name.
const Extension = ".png"

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrStorageIO  = errors.New("artifact storage failure")
	ErrInvalidKey = errors.New("invalid artifact id")
)

// Store persists generated artifacts. Artifacts are write-once: there is no
// update and no delete for request handlers.
type Store interface {
	Put(ctx context.Context, id string, content []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// ArtifactInfo describes one stored artifact for retention purposes.
type ArtifactInfo struct {
	ID         string
	Size       int64
	ModifiedAt time.Time
}

// Evictor is implemented by stores that support retention sweeps.
type Evictor interface {
	List(ctx context.Context) ([]ArtifactInfo, error)
	Remove(ctx context.Context, id string) error
}

// EvictingStore is a Store that can also be swept.
type EvictingStore interface {
	Store
	Evictor
}

func NewStore(cfg *config.Config) (EvictingStore, error) {
	storageType := strings.ToLower(cfg.StorageType)

	if storageType == config.StorageLocal {
		return NewLocalStore(cfg.VolumeDir)
	} else if storageType == config.StorageS3 {
		return NewS3Store(context.Background(), cfg.S3)
	}

	return nil, fmt.Errorf("invalid storage type %s", cfg.StorageType)
}

// FileName returns the stored object name for id.
func FileName(id string) string {
	return id + Extension
}

// validID rejects identifiers that could escape the storage root.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func ioError(op, id string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrStorageIO, op, id, err)
}
