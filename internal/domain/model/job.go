package model

import "time"

// JobStatus is the lifecycle state of a separation job.
type JobStatus string

// Job statuses.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Probe describes an uploaded audio file.
type Probe struct {
	Format     string  `json:"format" bson:"format"`
	MIME       string  `json:"mime" bson:"mime"`
	Duration   float64 `json:"duration_seconds" bson:"duration_seconds"`
	SampleRate int     `json:"sample_rate" bson:"sample_rate"`
	Channels   int     `json:"channels" bson:"channels"`
	Bitrate    int     `json:"bitrate_kbps,omitempty" bson:"bitrate_kbps,omitempty"`
	Title      string  `json:"title,omitempty" bson:"title,omitempty"`
	Artist     string  `json:"artist,omitempty" bson:"artist,omitempty"`
	Album      string  `json:"album,omitempty" bson:"album,omitempty"`
}

// Job is one upload travelling through separation and analysis.
type Job struct {
	ID           string            `json:"id" bson:"_id"`
	Status       JobStatus         `json:"status" bson:"status"`
	FileName     string            `json:"file_name" bson:"file_name"`
	ContentHash  string            `json:"content_hash" bson:"content_hash"`
	UploadPath   string            `json:"-" bson:"upload_path"`
	OutputDir    string            `json:"-" bson:"output_dir"`
	Probe        Probe             `json:"probe" bson:"probe"`
	Stems        map[string]string `json:"-" bson:"stems,omitempty"`
	Energies     EnergyMap         `json:"energies,omitempty" bson:"energies,omitempty"`
	Distribution DistributionMap   `json:"-" bson:"distribution,omitempty"`
	Error        string            `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" bson:"updated_at"`
}

// Task is the queue payload for a job.
type Task struct {
	JobID string
}
