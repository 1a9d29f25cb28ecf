// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/stemai/internal/adapters/audiofile"
	"github.com/okian/stemai/internal/adapters/repository"
	service "github.com/okian/stemai/internal/app"
	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
)

// multipartOverhead is allowed on top of the file size limit for headers
// and boundaries.
const multipartOverhead = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Submit stores an upload and queues it for separation.
	Submit(ctx context.Context, up service.Upload) (service.SubmitResult, error)

	// Read operations expose jobs and their stems.
	Get(ctx context.Context, id string) (model.Job, error)
	List(ctx context.Context, limit int) ([]model.Job, error)
	StemPath(ctx context.Context, id, label string) (string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	separationsHandler *SeparationsHandler
	stemsHandler       *StemsHandler
	chartHandler       *ChartHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxUploadBytes caps request bodies on POST /separations.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.separationsHandler.maxBody = n + multipartOverhead
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		separationsHandler: NewSeparationsHandler(deps),
		stemsHandler:       NewStemsHandler(deps),
		chartHandler:       NewChartHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /separations", MetricsMiddleware(s.separationsHandler.HandleCreate, "separations_create"))
	mux.HandleFunc("GET /separations", MetricsMiddleware(s.separationsHandler.HandleList, "separations_list"))
	mux.HandleFunc("GET /separations/{id}", MetricsMiddleware(s.separationsHandler.HandleGet, "separations_get"))
	mux.HandleFunc("GET /separations/{id}/stems/{label}", MetricsMiddleware(s.stemsHandler.HandleStem, "stems"))
	mux.HandleFunc("GET /separations/{id}/chart.svg", MetricsMiddleware(s.chartHandler.HandleChart, "chart"))
}

// stemLink points at one stem's playback and download URLs.
type stemLink struct {
	Label       string `json:"label"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}

// jobResponse is the public shape of a job.
type jobResponse struct {
	ID           string          `json:"id"`
	Status       model.JobStatus `json:"status"`
	Duplicate    bool            `json:"duplicate,omitempty"`
	FileName     string          `json:"file_name"`
	Probe        model.Probe     `json:"probe"`
	Distribution []energy.Share  `json:"distribution,omitempty"`
	Energies     model.EnergyMap `json:"energies,omitempty"`
	Stems        []stemLink      `json:"stems,omitempty"`
	ChartURL     string          `json:"chart_url,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newJobResponse(j *model.Job) jobResponse {
	resp := jobResponse{
		ID:        j.ID,
		Status:    j.Status,
		FileName:  j.FileName,
		Probe:     j.Probe,
		Energies:  j.Energies,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if len(j.Distribution) > 0 {
		resp.Distribution = energy.Ranked(j.Distribution)
		resp.ChartURL = "/separations/" + j.ID + "/chart.svg"
		for _, share := range resp.Distribution {
			if _, ok := j.Stems[share.Label]; !ok {
				continue
			}
			url := "/separations/" + j.ID + "/stems/" + share.Label
			resp.Stems = append(resp.Stems, stemLink{Label: share.Label, URL: url, DownloadURL: url + "?download=1"})
		}
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates upstream errors into status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrUnknownStem):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrJobNotReady):
		writeError(w, http.StatusConflict, "not_ready", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrTooLarge), errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
	case errors.Is(err, audiofile.ErrUnsupportedFormat), errors.Is(err, service.ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, "unsupported_media", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
