// Package repository persists separation jobs.
package repository

import (
	"context"

	"github.com/okian/stemai/internal/domain/model"
)

// Store provides read/write access to jobs.
type Store interface {
	// Create inserts a new job. Returns ErrExists if the ID is taken.
	Create(ctx context.Context, job *model.Job) error

	// Get returns a job by ID. Returns ErrNotFound if the job is unknown.
	Get(ctx context.Context, id string) (model.Job, error)

	// Update replaces a stored job. Returns ErrNotFound if the job is unknown.
	Update(ctx context.Context, job *model.Job) error

	// Delete removes a job. Returns ErrNotFound if the job is unknown.
	Delete(ctx context.Context, id string) error

	// List returns up to limit jobs, newest first.
	List(ctx context.Context, limit int) ([]model.Job, error)

	// Count returns the number of stored jobs.
	Count(ctx context.Context) int
}

// cloneJob deep-copies the maps so callers never share state with the store.
func cloneJob(j *model.Job) model.Job {
	out := *j
	if j.Stems != nil {
		out.Stems = make(map[string]string, len(j.Stems))
		for k, v := range j.Stems {
			out.Stems[k] = v
		}
	}
	if j.Energies != nil {
		out.Energies = make(model.EnergyMap, len(j.Energies))
		for k, v := range j.Energies {
			out.Energies[k] = v
		}
	}
	if j.Distribution != nil {
		out.Distribution = make(model.DistributionMap, len(j.Distribution))
		for k, v := range j.Distribution {
			out.Distribution[k] = v
		}
	}
	return out
}
