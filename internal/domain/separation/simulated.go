package separation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/stemai/internal/domain/model"
)

// Default simulated model configuration.
const (
	defaultGain       = 0.5
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
	defaultRandomSeed = 42
)

// SimulatedOption applies a configuration option to the Simulated separator.
type SimulatedOption func(*Simulated)

// WithLatencyRange sets the simulated inference latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if minLatency >= 0 && maxLatency >= minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithGains sets per-label gains. Labels without a positive gain use defaultGain.
func WithGains(gains map[string]float64, defaultGain float64) SimulatedOption {
	return func(s *Simulated) {
		s.gains = make(map[string]float64, len(gains))
		for label, g := range gains {
			if g >= 0 {
				s.gains[label] = g
			}
		}
		if defaultGain > 0 {
			s.defaultGain = defaultGain
		}
	}
}

// WithSeed seeds the latency generator.
func WithSeed(seed int64) SimulatedOption {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // latency jitter only
	}
}

// Simulated stands in for a real model: every label gets the input scaled
// by that label's gain after a random delay.
type Simulated struct {
	labels      []string
	gains       map[string]float64
	defaultGain float64
	minLatency  time.Duration
	maxLatency  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated separator producing the given labels.
func NewSimulated(labels []string, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		labels:      append([]string(nil), labels...),
		gains:       make(map[string]float64),
		defaultGain: defaultGain,
		minLatency:  defaultMinLatency,
		maxLatency:  defaultMaxLatency,
		rng:         rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic for tests
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gain returns the gain applied to label.
func (s *Simulated) Gain(label string) float64 {
	if g, ok := s.gains[label]; ok {
		return g
	}
	return s.defaultGain
}

func (s *Simulated) latency() time.Duration {
	if s.maxLatency <= s.minLatency {
		return s.minLatency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
}

// Separate implements Separator.
func (s *Simulated) Separate(ctx context.Context, in model.Signal) (model.StemSet, error) {
	if d := s.latency(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}

	out := make(model.StemSet, len(s.labels))
	for _, label := range s.labels {
		out[label] = in.Scale(s.Gain(label))
	}
	return out, nil
}
