// Package repository defines the job record store interface and errors.
package repository

import (
	"context"

	"github.com/rdarie/spikepipe/internal/domain/model"
)

// Store provides read/write access to job state.
type Store interface {
	// Create registers a new job record.
	// Returns ErrAlreadyExists when the job ID is already tracked.
	Create(ctx context.Context, rec model.JobRecord) error

	// Update applies fn to the record under the store lock and persists
	// the result. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, jobID string, fn func(*model.JobRecord)) (model.JobRecord, error)

	// Get returns the record for a job.
	// Returns ErrNotFound if the job is unknown.
	Get(ctx context.Context, jobID string) (model.JobRecord, error)

	// List returns up to limit records, newest submission first.
	List(ctx context.Context, limit int) ([]model.JobRecord, error)

	// Count returns the number of tracked jobs.
	Count(ctx context.Context) int
}
