package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"verge/internal/dump"
)

// Current schema version - increment when cachedResult format changes
const cacheSchemaVersion uint16 = 1

// Digest identifies a procedure's analysis inputs.
type Digest [sha256.Size]byte

// ProcDigest hashes the wire form of one procedure. Two dumps carrying the
// same procedure definition map to the same cache slot.
func ProcDigest(d *dump.ProcDef) (Digest, error) {
	raw, err := msgpack.Marshal(d)
	if err != nil {
		return Digest{}, err
	}
	return sha256.Sum256(raw), nil
}

// DiskCache stores accessibility results per procedure digest on disk, so
// repeated runs over an unchanged dump skip recomputation.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// cachedResult is the serialized accessibility outcome of one procedure.
type cachedResult struct {
	Schema uint16
	Points []cachedPoint
}

// cachedPoint is one program point's state. IsEdge selects which of the
// location fields are meaningful.
type cachedPoint struct {
	IsEdge     bool
	Block      int32
	Statement  int32
	From       int32
	To         int32
	Accessible []dump.PlaceRef
	Owned      []dump.PlaceRef
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// OpenDiskCacheAt opens a cache rooted at an explicit directory.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	// Subdirectory "procs" keeps the cache root inspectable.
	return filepath.Join(c.dir, "procs", hex.EncodeToString(key[:])+".mp")
}

// put serializes and writes a result to the disk cache.
func (c *DiskCache) put(key Digest, payload *cachedResult) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Atomic replace
	return os.Rename(f.Name(), p)
}

// get reads and deserializes a result from the disk cache. A missing entry
// or a stale schema reports (false, nil).
func (c *DiskCache) get(key Digest, out *cachedResult) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != cacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
