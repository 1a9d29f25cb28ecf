package stemclient

import (
	"time"

	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
)

// Default client settings.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultTimeout      = 5 * time.Minute
	DefaultPollInterval = 500 * time.Millisecond
)

// Stem links one separated stem.
type Stem struct {
	Label       string `json:"label"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}

// Job is a separation job as reported by the service.
type Job struct {
	ID           string          `json:"id"`
	Status       model.JobStatus `json:"status"`
	Duplicate    bool            `json:"duplicate"`
	FileName     string          `json:"file_name"`
	Probe        model.Probe     `json:"probe"`
	Distribution []energy.Share  `json:"distribution"`
	Energies     model.EnergyMap `json:"energies"`
	Stems        []Stem          `json:"stems"`
	Error        string          `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
