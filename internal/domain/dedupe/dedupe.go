// Package dedupe remembers content fingerprints of submitted datasets so a
// repeated upload maps to the run it already started.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

const defaultMaxSize = 1024

// Deduper maps content fingerprints to run IDs.
type Deduper interface {
	// Claim records runID for key unless key is already known.
	// It returns the run ID that owns key and whether key was already known.
	Claim(ctx context.Context, key, runID string) (string, bool)

	// Release forgets key, allowing the content to be submitted again.
	// Used when a run could not be queued.
	Release(ctx context.Context, key string)

	Size() int
}

// inMemoryDeduper keeps at most maxSize keys, evicting the oldest first.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	owners  map[string]string
	order   []string
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.owners = make(map[string]string)
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, runID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.owners[key]; ok {
		return owner, true
	}
	if d.maxSize > 0 {
		for len(d.owners) >= d.maxSize && len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.owners, oldest)
		}
	}
	d.owners[key] = runID
	d.order = append(d.order, key)
	return runID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.owners[key]; !ok {
		return
	}
	delete(d.owners, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.owners)
}

// Fingerprint hashes the content of r.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
