package audiofile

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/okian/stemai/internal/domain/model"
)

const (
	outBitDepth           = 16
	pcmAudioFormat        = 1
	extensibleAudioFormat = 0xFFFE

	// maxExtensiblePCMDepth is the deepest WAVE_FORMAT_EXTENSIBLE stream read
	// in process. The decoder does not expose the subformat, and 32/64-bit
	// extensible streams are usually float.
	maxExtensiblePCMDepth = 24
)

// ReadWAV decodes a PCM WAV stream into a signal scaled to [-1, 1].
func ReadWAV(r io.ReadSeeker) (model.Signal, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return model.Signal{}, fmt.Errorf("%w: not a valid wav stream", ErrDecode)
	}
	if !integerPCM(d.WavAudioFormat, int(d.BitDepth)) {
		return model.Signal{}, fmt.Errorf("%w: wav format %#x at %d bits is not integer PCM", ErrDecode, d.WavAudioFormat, d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return model.Signal{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return model.Signal{}, fmt.Errorf("%w: missing format chunk", ErrDecode)
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	samples := make([]float64, len(buf.Data))
	if depth == 8 {
		for i, v := range buf.Data {
			samples[i] = float64(v-128) / 128
		}
	} else {
		full := math.Exp2(float64(depth - 1))
		for i, v := range buf.Data {
			samples[i] = float64(v) / full
		}
	}
	return model.NewSignal(samples, buf.Format.SampleRate, buf.Format.NumChannels)
}

// integerPCM reports whether samples are stored as plain integers.
func integerPCM(format uint16, depth int) bool {
	switch format {
	case pcmAudioFormat:
		return true
	case extensibleAudioFormat:
		return depth <= maxExtensiblePCMDepth
	default:
		return false
	}
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (model.Signal, error) {
	f, err := os.Open(path) //nolint:gosec // path is built by the caller
	if err != nil {
		return model.Signal{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadWAV(f)
}

// WriteWAV encodes s as 16-bit PCM, clipping anything outside [-1, 1].
func WriteWAV(w io.WriteSeeker, s model.Signal) error {
	data := make([]int, s.Len())
	s.Each(func(i int, v float64) {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * math.MaxInt16))
	})

	enc := wav.NewEncoder(w, s.SampleRate(), outBitDepth, s.Channels(), pcmAudioFormat)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: s.Channels(),
			SampleRate:  s.SampleRate(),
		},
		Data:           data,
		SourceBitDepth: outBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

// WriteWAVFile creates or truncates path and writes s to it.
func WriteWAVFile(path string, s model.Signal) error {
	f, err := os.Create(path) //nolint:gosec // path is built by the caller
	if err != nil {
		return err
	}
	if err := WriteWAV(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// StemFileName is the on-disk name of a stem.
func StemFileName(label string) string { return label + ".wav" }

// WriteStems writes every stem to dir/<label>.wav and returns label -> file name.
func WriteStems(dir string, stems model.StemSet) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create stem dir: %w", err)
	}
	out := make(map[string]string, len(stems))
	for _, label := range stems.Labels() {
		name := StemFileName(label)
		if err := WriteWAVFile(filepath.Join(dir, name), stems[label]); err != nil {
			return nil, fmt.Errorf("write stem %q: %w", label, err)
		}
		out[label] = name
	}
	return out, nil
}

// ReadStems loads every <label>.wav in dir, keyed by label.
func ReadStems(dir string) (model.StemSet, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, err
	}
	stems := make(model.StemSet, len(matches))
	for _, path := range matches {
		s, err := ReadWAVFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		base := filepath.Base(path)
		stems[base[:len(base)-len(filepath.Ext(base))]] = s
	}
	return stems, nil
}
