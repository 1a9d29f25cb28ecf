// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load(ctx) layers an optional YAML file and env vars over the defaults.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of separation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the upload content-hash index.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxUploadMB caps the accepted upload size.
	MaxUploadMB int `koanf:"max_upload_mb"`

	// UploadDir receives uploaded files, one directory per job.
	UploadDir string `koanf:"upload_dir"`

	// OutputDir receives stem files, one directory per job.
	OutputDir string `koanf:"output_dir"`

	// StemLabels is the ordered label set the separator produces.
	StemLabels []string `koanf:"stem_labels"`

	// StemMap translates model output names to stem labels.
	StemMap map[string]string `koanf:"stem_map"`

	// Separator selects the separation backend: simulated or demucs.
	Separator string `koanf:"separator"`

	// DemucsBin and DemucsModel configure the demucs backend.
	DemucsBin   string `koanf:"demucs_bin"`
	DemucsModel string `koanf:"demucs_model"`

	// FFmpegBin is used to decode non-WAV uploads.
	FFmpegBin string `koanf:"ffmpeg_bin"`

	// SampleRate is the rate uploads are decoded to before separation.
	SampleRate int `koanf:"sample_rate"`

	// SimulatedGains maps stem labels to the gain the simulated separator applies.
	SimulatedGains map[string]float64 `koanf:"simulated_gains"`

	// SimulatedLatencyMinMS and SimulatedLatencyMaxMS bound the simulated model latency.
	SimulatedLatencyMinMS int `koanf:"simulated_latency_min_ms"`
	SimulatedLatencyMaxMS int `koanf:"simulated_latency_max_ms"`

	// MaxJobList caps GET /separations?limit.
	MaxJobList int `koanf:"max_job_list"`

	// MongoURI enables the MongoDB job store when set.
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		QueueSize:   64,
		WorkerCount: runtime.NumCPU(),
		DedupeSize:  10_000,
		MaxUploadMB: 200,
		UploadDir:   "temp_audio",
		OutputDir:   "output_stems",
		StemLabels:  []string{"drums", "bass", "melody", "vocals"},
		StemMap: map[string]string{
			"other": "melody",
		},
		Separator:   "simulated",
		DemucsBin:   "demucs",
		DemucsModel: "htdemucs",
		FFmpegBin:   "ffmpeg",
		SampleRate:  44100,
		SimulatedGains: map[string]float64{
			"drums":  0.5,
			"bass":   0.3,
			"melody": 0.4,
			"vocals": 0.6,
		},
		SimulatedLatencyMinMS: 80,
		SimulatedLatencyMaxMS: 150,
		MaxJobList:            100,
		MongoDatabase:         "stemai",
	}
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
