package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("job queue full")
	ErrTooLarge     = errors.New("upload too large")
	ErrEmptyUpload  = errors.New("empty upload")
	ErrJobNotReady  = errors.New("job not finished")
	ErrUnknownStem  = errors.New("unknown stem")
)
