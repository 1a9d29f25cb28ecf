// Package separation defines the contract for splitting a mix into stems.
package separation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/okian/stemai/internal/domain/model"
)

// Sentinel kinds for separation errors.
var (
	ErrUnavailable = errors.New("separation model unavailable")
	ErrClosed      = errors.New("separation handle closed")
	ErrBadOutput   = errors.New("separation output violates contract")
)

// Separator splits one signal into labelled stems. Implementations must be
// safe for concurrent use.
type Separator interface {
	// Separate honours ctx for cancellation.
	Separate(ctx context.Context, in model.Signal) (model.StemSet, error)
}

// Factory builds a Separator on first use.
type Factory func(ctx context.Context) (Separator, error)

// Handle owns a lazily initialised Separator and checks what it returns.
type Handle struct {
	factory Factory
	labels  []string

	initMu sync.Mutex
	sep    Separator

	mu     sync.RWMutex
	closed bool
}

// NewHandle wraps factory. Results must contain every label in labels.
func NewHandle(factory Factory, labels []string) *Handle {
	return &Handle{factory: factory, labels: append([]string(nil), labels...)}
}

// Labels returns the stem labels every result carries.
func (h *Handle) Labels() []string { return append([]string(nil), h.labels...) }

// get builds the model on first use. A failed build is not cached; the next
// call tries again.
func (h *Handle) get(ctx context.Context) (Separator, error) {
	h.initMu.Lock()
	defer h.initMu.Unlock()
	if h.sep != nil {
		return h.sep, nil
	}
	sep, err := h.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	h.sep = sep
	return sep, nil
}

// Separate initialises the model if needed, runs it and validates the result.
func (h *Handle) Separate(ctx context.Context, in model.Signal) (model.StemSet, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}

	sep, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	stems, err := sep.Separate(ctx, in)
	if err != nil {
		return nil, err
	}
	return h.check(in, stems)
}

func (h *Handle) check(in model.Signal, stems model.StemSet) (model.StemSet, error) {
	out := make(model.StemSet, len(h.labels))
	for _, label := range h.labels {
		s, ok := stems[label]
		if !ok {
			return nil, fmt.Errorf("%w: missing stem %q", ErrBadOutput, label)
		}
		if s.SampleRate() != in.SampleRate() {
			return nil, fmt.Errorf("%w: stem %q at %d Hz, input at %d Hz", ErrBadOutput, label, s.SampleRate(), in.SampleRate())
		}
		out[label] = s
	}
	return out, nil
}

// Close releases the model. Later calls to Separate fail with ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if c, ok := h.sep.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
