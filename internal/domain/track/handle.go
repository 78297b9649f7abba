package track

import (
	"bytes"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	ErrHandleRevoked  = errors.New("local handle is revoked")
	ErrAlreadyRevoked = errors.New("local handle already revoked")
)

// Handle is a revocable reference to in-memory file bytes.
// The bytes are owned by the handle and dropped on Revoke.
type Handle struct {
	mu      sync.RWMutex
	id      string
	data    []byte
	revoked bool
}

// NewHandle creates a handle that owns data.
func NewHandle(id string, data []byte) *Handle {
	return &Handle{id: id, data: data}
}

// URI returns the opaque locator of the handle.
func (h *Handle) URI() string {
	return "blob:moodbox/" + h.id
}

// Size returns the number of bytes held, or 0 once revoked.
func (h *Handle) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.data)
}

// Open returns a reader over the bytes.
func (h *Handle) Open() (io.ReadSeekCloser, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.revoked {
		return nil, ErrHandleRevoked
	}
	return nopCloser{bytes.NewReader(h.data)}, nil
}

// Revoke releases the bytes. It must be called exactly once.
func (h *Handle) Revoke() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.revoked {
		return ErrAlreadyRevoked
	}
	h.revoked = true
	h.data = nil
	return nil
}

// Revoked reports whether the handle has been revoked.
func (h *Handle) Revoked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revoked
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
