// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"sort"
)

// Signal is an immutable block of audio samples. Multi-channel audio is
// interleaved frame by frame.
type Signal struct {
	samples    []float64
	sampleRate int
	channels   int
}

// NewSignal copies samples into a new Signal. channels < 1 is treated as mono.
func NewSignal(samples []float64, sampleRate, channels int) (Signal, error) {
	if sampleRate <= 0 {
		return Signal{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels < 1 {
		channels = 1
	}
	if len(samples)%channels != 0 {
		return Signal{}, fmt.Errorf("%d samples do not split into %d channels", len(samples), channels)
	}
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return Signal{samples: cp, sampleRate: sampleRate, channels: channels}, nil
}

// MustSignal is NewSignal for literals known to be valid.
func MustSignal(samples []float64, sampleRate, channels int) Signal {
	s, err := NewSignal(samples, sampleRate, channels)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the total number of samples across all channels.
func (s Signal) Len() int { return len(s.samples) }

// Frames returns the number of sample frames.
func (s Signal) Frames() int {
	if s.channels == 0 {
		return 0
	}
	return len(s.samples) / s.channels
}

// SampleRate returns samples per second per channel.
func (s Signal) SampleRate() int { return s.sampleRate }

// Channels returns the channel count.
func (s Signal) Channels() int { return s.channels }

// At returns sample i of the interleaved data.
func (s Signal) At(i int) float64 { return s.samples[i] }

// Samples returns a copy of the interleaved samples.
func (s Signal) Samples() []float64 {
	cp := make([]float64, len(s.samples))
	copy(cp, s.samples)
	return cp
}

// Each calls fn for every sample in order without copying.
func (s Signal) Each(fn func(i int, v float64)) {
	for i, v := range s.samples {
		fn(i, v)
	}
}

// Scale returns a new Signal with every sample multiplied by k.
func (s Signal) Scale(k float64) Signal {
	out := make([]float64, len(s.samples))
	for i, v := range s.samples {
		out[i] = v * k
	}
	return Signal{samples: out, sampleRate: s.sampleRate, channels: s.channels}
}

// StemSet maps stem labels to their separated signals.
type StemSet map[string]Signal

// Labels returns the labels in ascending order.
func (ss StemSet) Labels() []string {
	labels := make([]string, 0, len(ss))
	for l := range ss {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// SampleRate returns the shared sample rate, or an error when stems disagree.
func (ss StemSet) SampleRate() (int, error) {
	rate := 0
	for _, label := range ss.Labels() {
		r := ss[label].SampleRate()
		if rate == 0 {
			rate = r
			continue
		}
		if r != rate {
			return 0, fmt.Errorf("stem %q has sample rate %d, expected %d", label, r, rate)
		}
	}
	return rate, nil
}

// EnergyMap maps stem labels to RMS energy.
type EnergyMap map[string]float64

// DistributionMap maps stem labels to a percentage of total energy.
type DistributionMap map[string]float64
