package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/kailas-cloud/cortex/internal/domain"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
)

// ErrAlreadyWatched is returned by Claim when another process watches the collection.
var ErrAlreadyWatched = errors.New("collection is already watched")

// Claim takes the host-wide watch lock of a collection, so at most one
// watcher per machine re-ingests it. The lock file lives in lockDir
// (os.TempDir when empty). The returned func releases the lock.
func Claim(lockDir, collection string) (func(), error) {
	if err := domcol.ValidateName(collection); err != nil {
		return nil, fmt.Errorf("watch %q: %w: %w", collection, domain.ErrInvalidArgument, err)
	}
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	path := filepath.Join(lockDir, "cortex-watch-"+collection+".lock")

	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("watch %s (lock: %s): %w", collection, path, ErrAlreadyWatched)
	}
	return func() { _ = l.Unlock() }, nil
}
