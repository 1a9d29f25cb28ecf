package service

import (
	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/adapters/repository"
	"github.com/okian/stemai/internal/domain/separation"
	"github.com/okian/stemai/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many upload hashes are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the job store. The default is in memory.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSeparator sets the separation model handle. The default is the
// simulated model over the configured stem labels.
func WithSeparator(h *separation.Handle) Option {
	return func(s *Service) {
		if h != nil {
			s.separator = h
		}
	}
}

// WithDecoder sets how uploads become signals.
func WithDecoder(d *audiofile.Decoder) Option {
	return func(s *Service) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithUploadDir sets where uploads are kept, one directory per job.
func WithUploadDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.uploadDir = dir
		}
	}
}

// WithOutputDir sets where stems are written, one directory per job.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithStemLabels sets the stem labels used by the default separator.
func WithStemLabels(labels []string) Option {
	return func(s *Service) {
		if len(labels) > 0 {
			s.labels = append([]string(nil), labels...)
		}
	}
}

// WithMaxUploadBytes caps the size of a single upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxJobList caps how many jobs List returns.
func WithMaxJobList(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxJobList = n
		}
	}
}
