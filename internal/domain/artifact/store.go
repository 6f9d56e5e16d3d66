package artifact

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store errors
var (
	// ErrStorageIO wraps every backend-level read/write/compress/decompress failure.
	ErrStorageIO = errors.New("artifact storage I/O failure")
	// ErrInvalidKey is returned for keys a backend cannot represent.
	ErrInvalidKey = errors.New("invalid artifact key")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("artifact store closed")
)

// Artifact is one archived blob.
type Artifact struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// Info describes a stored artifact without its payload.
type Info struct {
	Key       string
	Size      int64 // compressed size on the backend
	CreatedAt time.Time
}

// Store persists opaque payloads by key. Keys are opaque to the store; a Put
// under an existing key fully replaces the previous payload. Payloads are
// compressed at rest and returned byte-for-byte.
type Store interface {
	// Put stores payload under key, overwriting any prior content.
	Put(ctx context.Context, key string, payload []byte) error

	// Get returns the payload for key. A missing key reports found=false with a
	// nil error.
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the artifacts whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)

	// Close releases persistent-storage handles.
	Close() error
}

// IOError wraps err as a storage failure for op on key.
func IOError(op, key string, err error) error {
	return fmt.Errorf("%s %q: %w: %w", op, key, ErrStorageIO, err)
}

const (
	keySep      = "@"
	versionsTag = "versions"
)

// VersionKey builds the conventional "<name>@<unix-millis>" artifact key.
func VersionKey(name string, t time.Time) string {
	return name + keySep + strconv.FormatInt(t.UnixMilli(), 10)
}

// LogKey is the key under which an entry's persisted version log is kept.
func LogKey(name string) string {
	return name + keySep + versionsTag
}

// VersionPrefix matches every version key of name.
func VersionPrefix(name string) string {
	return name + keySep
}

// ParseVersionKey splits a version key into its entry name and timestamp.
func ParseVersionKey(key string) (name string, t time.Time, ok bool) {
	i := strings.LastIndex(key, keySep)
	if i < 0 {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return key[:i], time.UnixMilli(ms), true
}
