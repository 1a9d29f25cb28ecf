// Package stemclient talks to the separation service over HTTP and renders
// results for terminals.
package stemclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/domain/model"
	"github.com/okian/stemai/pkg/logger"
)

// Client calls the separation API.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	logger       logger.Logger
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: DefaultTimeout},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("stemclient")
	}
	return c
}

// Upload streams the file at path to POST /separations.
func (c *Client) Upload(ctx context.Context, path string) (Job, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied input file
	if err != nil {
		return Job{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/separations", pr)
	if err != nil {
		_ = pr.Close()
		return Job{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var job Job
	if err := c.do(req, &job); err != nil {
		_ = pr.Close()
		return Job{}, err
	}
	c.logger.Info(ctx, "uploaded", logger.String("job_id", job.ID), logger.Bool("duplicate", job.Duplicate))
	return job, nil
}

// Get fetches one job.
func (c *Client) Get(ctx context.Context, id string) (Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/separations/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return Job{}, fmt.Errorf("create request: %w", err)
	}
	var job Job
	if err := c.do(req, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Wait polls a job until it reaches a terminal state. A failed job returns
// ErrJobFailed alongside the job.
func (c *Client) Wait(ctx context.Context, id string) (Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.Get(ctx, id)
		if err != nil {
			return Job{}, err
		}
		switch job.Status {
		case model.JobSucceeded:
			return job, nil
		case model.JobFailed:
			return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
		}
		c.logger.Debug(ctx, "waiting for job", logger.String("job_id", id), logger.String("status", string(job.Status)))

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadStems saves every stem of a finished job into dir as <label>.wav
// and returns the written paths.
func (c *Client) DownloadStems(ctx context.Context, job Job, dir string) ([]string, error) {
	if len(job.Stems) == 0 {
		return nil, ErrNoStems
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(job.Stems))
	for _, stem := range job.Stems {
		path := filepath.Join(dir, audiofile.StemFileName(stem.Label))
		if err := c.download(ctx, stem.DownloadURL, path); err != nil {
			return paths, fmt.Errorf("download %s: %w", stem.Label, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (c *Client) download(ctx context.Context, ref, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ref, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	f, err := os.Create(path) //nolint:gosec // path built from the output dir and a stem label
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Code
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}

// IsBackpressure reports whether err is the service shedding load.
func IsBackpressure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}
