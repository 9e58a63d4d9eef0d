package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nichescope/nichescope/internal/metrics"
	"github.com/nichescope/nichescope/internal/syncutil"
)

// fileMeta is the sidecar metadata stored next to each payload.
type fileMeta struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// File is a file-backed Store for local development. Each entry is a
// payload file plus a JSON metadata sidecar holding its expiry.
type File struct {
	dir     string
	metaDir string
	now     func() time.Time

	// Per-key locks serialize the payload+sidecar write pair, so a
	// concurrent writer cannot interleave and leave them mismatched.
	locks syncutil.ShardedMutex
}

// NewFile creates a file store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	metaDir := filepath.Join(dir, "metadata")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, &BackendError{Backend: "file", Op: "mkdir", Err: err}
	}
	return &File{dir: dir, metaDir: metaDir, now: time.Now}, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Get(key string) ([]byte, bool, error) {
	unlock := f.locks.Lock(key)
	defer unlock()

	meta, err := f.readMeta(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.CacheMissesTotal.WithLabelValues("file").Inc()
			return nil, false, nil
		}
		return nil, false, &BackendError{Backend: "file", Op: "get", Err: err}
	}

	if !meta.ExpiresAt.IsZero() && f.now().After(meta.ExpiresAt) {
		_ = f.remove(key)
		metrics.CacheMissesTotal.WithLabelValues("file").Inc()
		return nil, false, nil
	}

	payload, err := os.ReadFile(f.payloadPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.CacheMissesTotal.WithLabelValues("file").Inc()
			return nil, false, nil
		}
		return nil, false, &BackendError{Backend: "file", Op: "get", Err: err}
	}

	metrics.CacheHitsTotal.WithLabelValues("file").Inc()
	return payload, true, nil
}

func (f *File) Set(key string, payload []byte, ttl time.Duration) error {
	unlock := f.locks.Lock(key)
	defer unlock()

	if err := os.WriteFile(f.payloadPath(key), payload, 0o644); err != nil {
		return &BackendError{Backend: "file", Op: "set", Err: err}
	}

	meta := fileMeta{Key: key, CreatedAt: f.now()}
	if ttl > 0 {
		meta.ExpiresAt = meta.CreatedAt.Add(ttl)
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return &BackendError{Backend: "file", Op: "set", Err: err}
	}
	if err := os.WriteFile(f.metaPath(key), raw, 0o644); err != nil {
		return &BackendError{Backend: "file", Op: "set", Err: err}
	}
	return nil
}

func (f *File) Delete(key string) error {
	unlock := f.locks.Lock(key)
	defer unlock()
	return f.remove(key)
}

func (f *File) remove(key string) error {
	var firstErr error
	for _, path := range []string{f.payloadPath(key), f.metaPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return &BackendError{Backend: "file", Op: "delete", Err: firstErr}
	}
	return nil
}

func (f *File) Purge() (int, error) {
	matches, err := filepath.Glob(filepath.Join(f.metaDir, "*.json"))
	if err != nil {
		return 0, &BackendError{Backend: "file", Op: "purge", Err: err}
	}

	now := f.now()
	removed := 0
	for _, metaPath := range matches {
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta fileMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		if !meta.ExpiresAt.IsZero() && now.After(meta.ExpiresAt) {
			if err := f.Delete(meta.Key); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (f *File) readMeta(key string) (*fileMeta, error) {
	raw, err := os.ReadFile(f.metaPath(key))
	if err != nil {
		return nil, err
	}
	var meta fileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (f *File) payloadPath(key string) string {
	return filepath.Join(f.dir, safeFilename(key)+".dat")
}

func (f *File) metaPath(key string) string {
	return filepath.Join(f.metaDir, safeFilename(key)+".json")
}

// safeFilename maps a cache key onto a filesystem-safe name. Long keys
// are hashed to stay under filename length limits.
func safeFilename(key string) string {
	if len(key) > 100 {
		sum := md5.Sum([]byte(key))
		return hex.EncodeToString(sum[:])
	}

	var b strings.Builder
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
