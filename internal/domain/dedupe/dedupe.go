// Package dedupe maps upload content hashes to the job that first claimed them.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 10000

// Index records which job owns a given upload so identical uploads are not
// separated twice.
type Index interface {
	// Claim atomically records hash for jobID unless it is already known.
	// It returns the owning job ID and whether hash was already present.
	Claim(ctx context.Context, hash, jobID string) (owner string, seen bool)

	// Release forgets hash if jobID still owns it, so a failed upload can be
	// retried.
	Release(ctx context.Context, hash, jobID string)

	Size() int64
}

type entry struct {
	hash  string
	jobID string
}

// inMemoryIndex keeps the most recent maxSize claims, evicting the oldest.
// maxSize <= 0 means unbounded.
type inMemoryIndex struct {
	mu      sync.Mutex
	byHash  map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryIndex creates an in-memory index with configuration options.
func NewInMemoryIndex(opts ...Option) Index {
	d := &inMemoryIndex{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.byHash = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryIndex) Claim(_ context.Context, hash, jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.byHash[hash]; ok {
		return el.Value.(*entry).jobID, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.byHash[hash] = d.order.PushFront(&entry{hash: hash, jobID: jobID})
	d.size.Add(1)
	return jobID, false
}

func (d *inMemoryIndex) Release(_ context.Context, hash, jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.byHash[hash]
	if !ok || el.Value.(*entry).jobID != jobID {
		return
	}
	d.order.Remove(el)
	delete(d.byHash, hash)
	d.size.Add(-1)
}

// evictOldest must be called with d.mu held.
func (d *inMemoryIndex) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.byHash, el.Value.(*entry).hash)
	d.size.Add(-1)
}

func (d *inMemoryIndex) Size() int64 {
	return d.size.Load()
}

// Hash copies r to w while computing its SHA-256. It returns the hex digest
// and the number of bytes copied.
func Hash(w io.Writer, r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
