// Package service runs the separation pipeline behind the HTTP API: it
// accepts uploads, queues them, and turns each one into stems and an energy
// distribution.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stemai/internal/adapters/audiofile"
	jobqueue "github.com/okian/stemai/internal/adapters/mq/queue"
	workerpool "github.com/okian/stemai/internal/adapters/mq/worker"
	"github.com/okian/stemai/internal/adapters/repository"
	"github.com/okian/stemai/internal/domain/dedupe"
	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/internal/domain/separation"
	"github.com/okian/stemai/pkg/logger"
	"github.com/okian/stemai/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize      = 64
	defaultDedupeSize     = 10000
	defaultMaxUploadBytes = 200 << 20
	defaultMaxJobList     = 100
	defaultUploadDir      = "temp_audio"
	defaultOutputDir      = "output_stems"
	stopTimeout           = 30 * time.Second
)

// DefaultStemLabels are the stems produced when nothing else is configured.
var DefaultStemLabels = []string{"drums", "bass", "melody", "vocals"}

// Upload is one file handed to Submit.
type Upload struct {
	FileName string
	Body     io.Reader
}

// SubmitResult describes the job an upload maps to.
type SubmitResult struct {
	Job       model.Job
	Duplicate bool
}

// Service implements the API dependencies for stem separation.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	index     dedupe.Index
	queue     jobqueue.Queue
	pool      *workerpool.Pool
	separator *separation.Handle
	decoder   *audiofile.Decoder

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	uploadDir      string
	outputDir      string
	labels         []string
	maxUploadBytes int64
	maxJobList     int

	started bool
	now     func() time.Time

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		uploadDir:      defaultUploadDir,
		outputDir:      defaultOutputDir,
		labels:         append([]string(nil), DefaultStemLabels...),
		maxUploadBytes: defaultMaxUploadBytes,
		maxJobList:     defaultMaxJobList,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components. Workers outlive ctx
// cancellation; call Stop to drain them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting separation service...")

	for _, dir := range []string{s.uploadDir, s.outputDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory job store")
	}
	if s.separator == nil {
		labels := s.labels
		s.separator = separation.NewHandle(func(context.Context) (separation.Separator, error) {
			return separation.NewSimulated(labels), nil
		}, labels)
	}
	if s.decoder == nil {
		s.decoder = audiofile.NewDecoder(audiofile.WithLogger(s.logger.Named("audiofile")))
	}
	s.index = dedupe.NewInMemoryIndex(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))

	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.process))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "separation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Any("stems", s.separator.Labels()),
	)
	return nil
}

// Stop drains queued jobs, then releases the model and the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping separation service...")

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.separator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close separator: %w", err))
	}
	if closer, ok := s.store.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "separation service stopped")
	return errors.Join(errs...)
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Submit stores an upload and queues it for separation. A byte-identical
// upload that is already known returns the existing job with Duplicate set.
func (s *Service) Submit(ctx context.Context, up Upload) (SubmitResult, error) {
	if !s.isStarted() {
		return SubmitResult{}, ErrNotStarted
	}

	id := uuid.NewString()
	dir := filepath.Join(s.uploadDir, id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return SubmitResult{}, fmt.Errorf("create upload dir: %w", err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = os.RemoveAll(dir)
		}
	}()

	name := cleanFileName(up.FileName)
	path := filepath.Join(dir, name)
	hash, size, err := s.save(path, up.Body)
	if err != nil {
		return SubmitResult{}, err
	}

	format, err := audiofile.SniffFile(path)
	if err != nil {
		return SubmitResult{}, err
	}

	if owner, seen := s.index.Claim(ctx, hash, id); seen {
		job, err := s.store.Get(ctx, owner)
		switch {
		case err == nil:
			metrics.RecordUploadDuplicate()
			s.logger.Debug(ctx, "duplicate upload", logger.String("job_id", owner))
			return SubmitResult{Job: job, Duplicate: true}, nil
		case errors.Is(err, repository.ErrNotFound):
			s.index.Release(ctx, hash, owner)
			s.index.Claim(ctx, hash, id)
		default:
			return SubmitResult{}, err
		}
	}

	probe, err := audiofile.Probe(path, format)
	if err != nil {
		s.logger.Warn(ctx, "probe failed", logger.String("file", name), logger.Error(err))
	}

	now := s.now()
	job := model.Job{
		ID:          id,
		Status:      model.JobQueued,
		FileName:    name,
		ContentHash: hash,
		UploadPath:  path,
		OutputDir:   filepath.Join(s.outputDir, id),
		Probe:       probe,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, &job); err != nil {
		s.index.Release(ctx, hash, id)
		return SubmitResult{}, fmt.Errorf("store job: %w", err)
	}

	if !s.queue.Enqueue(ctx, model.Task{JobID: id}) {
		s.index.Release(ctx, hash, id)
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Error(ctx, "failed to drop rejected job", logger.String("job_id", id), logger.Error(err))
		}
		if s.queue.IsClosed() {
			return SubmitResult{}, ErrNotStarted
		}
		return SubmitResult{}, ErrBackpressure
	}

	keep = true
	metrics.RecordUpload(size)
	s.logger.Info(ctx, "job queued",
		logger.String("job_id", id),
		logger.String("file", name),
		logger.String("format", format.Ext),
		logger.Int64("bytes", size),
	)
	return SubmitResult{Job: job}, nil
}

// save streams body to path, enforcing the size cap, and returns its hash.
func (s *Service) save(path string, body io.Reader) (string, int64, error) {
	f, err := os.Create(path) //nolint:gosec // path is built from a fresh job ID
	if err != nil {
		return "", 0, fmt.Errorf("create upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	hash, n, err := dedupe.Hash(f, io.LimitReader(body, s.maxUploadBytes+1))
	switch {
	case err != nil:
		return "", n, fmt.Errorf("read upload: %w", err)
	case n == 0:
		return "", 0, ErrEmptyUpload
	case n > s.maxUploadBytes:
		return "", n, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxUploadBytes)
	}
	return hash, n, nil
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}

// process runs one job start to finish. Failures end up on the job, not in
// the returned error, unless the job itself cannot be read or written.
func (s *Service) process(ctx context.Context, t model.Task) error {
	job, err := s.store.Get(ctx, t.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", t.JobID, err)
	}
	log := s.logger.With(logger.String("job_id", job.ID))

	job.Status = model.JobRunning
	job.UpdatedAt = s.now()
	if err := s.store.Update(ctx, &job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	start := time.Now()
	if err := s.run(ctx, &job); err != nil {
		job.Status = model.JobFailed
		job.Error = err.Error()
		s.index.Release(ctx, job.ContentHash, job.ID)
		log.Warn(ctx, "job failed", logger.Error(err))
	} else {
		job.Status = model.JobSucceeded
		log.Info(ctx, "job succeeded", logger.Duration("took", time.Since(start)))
	}
	metrics.RecordJobFinished(string(job.Status))

	job.UpdatedAt = s.now()
	if err := s.store.Update(context.WithoutCancel(ctx), &job); err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	return nil
}

func (s *Service) run(ctx context.Context, job *model.Job) error {
	format := audiofile.Format{Ext: job.Probe.Format, MIME: job.Probe.MIME}
	if format.Ext == "" {
		f, err := audiofile.SniffFile(job.UploadPath)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		format = f
	}

	signal, err := s.decoder.Decode(ctx, job.UploadPath, format)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	sepStart := time.Now()
	stems, err := s.separator.Separate(ctx, signal)
	if err != nil {
		return fmt.Errorf("separate: %w", err)
	}
	metrics.RecordSeparationLatency(float64(time.Since(sepStart).Milliseconds()))

	names, err := audiofile.WriteStems(job.OutputDir, stems)
	if err != nil {
		return fmt.Errorf("write stems: %w", err)
	}
	job.Stems = names

	// Analyze what was written so the figures match the downloadable files.
	analysisStart := time.Now()
	written, err := audiofile.ReadStems(job.OutputDir)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	energies, err := energy.Energies(written)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	job.Energies = energies
	dist, err := energy.FromEnergies(energies)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	job.Distribution = dist
	metrics.RecordAnalysisLatency(float64(time.Since(analysisStart).Milliseconds()))
	for label, pct := range dist {
		metrics.RecordStemShare(label, pct)
	}
	return nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id string) (model.Job, error) {
	if !s.isStarted() {
		return model.Job{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// List returns recent jobs, newest first. limit < 1 or above the configured
// cap returns the cap.
func (s *Service) List(ctx context.Context, limit int) ([]model.Job, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	if limit < 1 || limit > s.maxJobList {
		limit = s.maxJobList
	}
	return s.store.List(ctx, limit)
}

// StemPath returns the file holding one stem of a finished job.
func (s *Service) StemPath(ctx context.Context, id, label string) (string, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != model.JobSucceeded {
		return "", fmt.Errorf("%w: job is %s", ErrJobNotReady, job.Status)
	}
	name, ok := job.Stems[label]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStem, label)
	}
	return filepath.Join(job.OutputDir, name), nil
}

// StemLabels returns the labels every successful job carries.
func (s *Service) StemLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.separator != nil {
		return s.separator.Labels()
	}
	return append([]string(nil), s.labels...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"stemLabels":  s.labels,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		jobs := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["jobsStored"] = jobs
		stats["knownUploads"] = s.index.Size()
		stats["stemLabels"] = s.separator.Labels()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateJobsStored(jobs)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
