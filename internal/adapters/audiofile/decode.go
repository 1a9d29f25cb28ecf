package audiofile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/pkg/logger"
)

const (
	defaultFFmpeg     = "ffmpeg"
	defaultSampleRate = 44100
	maxStderrTail     = 512
)

// Decoder loads uploads as signals at a fixed sample rate. Channels are
// preserved.
type Decoder struct {
	ffmpegBin  string
	sampleRate int
	log        logger.Logger
}

// NewDecoder creates a decoder with configuration options.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		ffmpegBin:  defaultFFmpeg,
		sampleRate: defaultSampleRate,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("audiofile")
	}
	return d
}

// SampleRate returns the target rate.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Decode reads path as a signal. WAV input already at the target rate is
// decoded in process; everything else goes through ffmpeg first.
func (d *Decoder) Decode(ctx context.Context, path string, f Format) (model.Signal, error) {
	if f.IsWAV() {
		s, err := ReadWAVFile(path)
		if err == nil && s.SampleRate() == d.sampleRate {
			return s, nil
		}
		if err != nil {
			d.log.Debug(ctx, "in-process wav decode failed, falling back to ffmpeg",
				logger.String("path", path), logger.Error(err))
		}
	}

	tmp := filepath.Join(filepath.Dir(path), "decoded-"+strconv.FormatInt(time.Now().UnixNano(), 36)+".wav")
	defer func() { _ = os.Remove(tmp) }()
	if err := d.Transcode(ctx, path, tmp); err != nil {
		return model.Signal{}, err
	}
	return ReadWAVFile(tmp)
}

// Transcode converts in to 16-bit PCM WAV at the target rate.
func (d *Decoder) Transcode(ctx context.Context, in, out string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in, "-vn",
		"-ar", strconv.Itoa(d.sampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, d.ffmpegBin, args...) //nolint:gosec // binary comes from config
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %w: %s", ErrDecode, err, tail(stderr.String()))
	}
	d.log.Debug(ctx, "transcoded", logger.String("in", filepath.Base(in)), logger.Duration("took", time.Since(start)))
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		s = "..." + s[len(s)-maxStderrTail:]
	}
	return s
}
