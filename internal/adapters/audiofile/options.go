package audiofile

import "github.com/okian/stemai/pkg/logger"

// Option applies a configuration option to the Decoder.
type Option func(*Decoder)

// WithFFmpeg sets the ffmpeg binary used for non-WAV input and resampling.
func WithFFmpeg(bin string) Option {
	return func(d *Decoder) {
		if bin != "" {
			d.ffmpegBin = bin
		}
	}
}

// WithSampleRate sets the rate every decoded signal is brought to.
func WithSampleRate(rate int) Option {
	return func(d *Decoder) {
		if rate > 0 {
			d.sampleRate = rate
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}
