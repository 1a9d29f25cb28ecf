// Package demucs runs the demucs command line tool as a separation model.
package demucs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/internal/domain/separation"
	"github.com/okian/stemai/pkg/logger"
)

const (
	defaultBinary = "demucs"
	defaultModel  = "htdemucs"
	inputName     = "input.wav"
)

// Separator shells out to demucs for every call. It is safe for concurrent
// use because each call works in its own scratch directory.
type Separator struct {
	bin     string
	model   string
	stemMap map[string]string
	workDir string
	log     logger.Logger
}

// New creates a Separator. It does not check the binary; use Factory for that.
func New(opts ...Option) *Separator {
	s := &Separator{
		bin:     defaultBinary,
		model:   defaultModel,
		stemMap: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("demucs")
	}
	return s
}

// Factory returns a separation.Factory that resolves the binary on first use.
func Factory(opts ...Option) separation.Factory {
	return func(ctx context.Context) (separation.Separator, error) {
		s := New(opts...)
		path, err := exec.LookPath(s.bin)
		if err != nil {
			return nil, fmt.Errorf("demucs binary %q: %w", s.bin, err)
		}
		s.bin = path
		s.log.Info(ctx, "demucs model ready", logger.String("bin", path), logger.String("model", s.model))
		return s, nil
	}
}

// Label maps a model stem name to the configured label.
func (s *Separator) Label(stem string) string {
	if l, ok := s.stemMap[stem]; ok {
		return l
	}
	return stem
}

// Separate implements separation.Separator.
func (s *Separator) Separate(ctx context.Context, in model.Signal) (model.StemSet, error) {
	scratch, err := os.MkdirTemp(s.workDir, "demucs-*")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	input := filepath.Join(scratch, inputName)
	if err := audiofile.WriteWAVFile(input, in); err != nil {
		return nil, fmt.Errorf("write demucs input: %w", err)
	}

	outDir := filepath.Join(scratch, "out")
	start := time.Now()
	cmd := exec.CommandContext(ctx, s.bin, "-n", s.model, "-o", outDir, input) //nolint:gosec // binary comes from config
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("run demucs: %w: %s", err, lastLine(stderr.String()))
	}
	s.log.Debug(ctx, "demucs finished", logger.Duration("took", time.Since(start)))

	files, err := filepath.Glob(filepath.Join(outDir, "*", "*", "*.wav"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("demucs produced no stems under %s", outDir)
	}

	stems := make(model.StemSet, len(files))
	for _, f := range files {
		sig, err := audiofile.ReadWAVFile(f)
		if err != nil {
			return nil, fmt.Errorf("read demucs stem %s: %w", filepath.Base(f), err)
		}
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		label := s.Label(name)
		if prev, ok := stems[label]; ok {
			if sig, err = mix(prev, sig); err != nil {
				return nil, fmt.Errorf("merge %s into %s: %w", name, label, err)
			}
		}
		stems[label] = sig
	}
	return stems, nil
}

// mix sums two stems that map to the same label.
func mix(a, b model.Signal) (model.Signal, error) {
	if a.Len() != b.Len() || a.Channels() != b.Channels() {
		return model.Signal{}, fmt.Errorf("shape mismatch: %d/%dch vs %d/%dch", a.Len(), a.Channels(), b.Len(), b.Channels())
	}
	out := a.Samples()
	b.Each(func(i int, v float64) { out[i] += v })
	return model.NewSignal(out, a.SampleRate(), a.Channels())
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
