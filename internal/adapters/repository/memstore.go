package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// defaultListLimit caps List when the caller passes no limit.
const defaultListLimit = 100

// MemStore is an in-memory Store. Reads serve a cached newest-first
// snapshot that is invalidated on every write.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]model.JobRecord

	// snapshot is the sorted view served by List, rebuilt lazily.
	snapshot []model.JobRecord

	listLimit int
}

// NewMemStore creates an empty in-memory job store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		records:   make(map[string]model.JobRecord),
		listLimit: defaultListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateRepositoryRecords(0)
	return s
}

// Create registers a new job record.
func (s *MemStore) Create(ctx context.Context, rec model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.JobID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.JobID)
	}
	s.records[rec.JobID] = rec
	s.snapshot = nil
	metrics.UpdateRepositoryRecords(len(s.records))
	return nil
}

// Update applies fn to the record under the store lock.
func (s *MemStore) Update(ctx context.Context, jobID string, fn func(*model.JobRecord)) (model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[jobID]
	if !ok {
		return model.JobRecord{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	fn(&rec)
	rec.JobID = jobID // the ID is immutable
	s.records[jobID] = rec
	s.snapshot = nil
	return rec, nil
}

// Get returns the record for a job.
func (s *MemStore) Get(ctx context.Context, jobID string) (model.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[jobID]
	if !ok {
		return model.JobRecord{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return rec, nil
}

// List returns up to limit records, newest submission first.
func (s *MemStore) List(ctx context.Context, limit int) ([]model.JobRecord, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if limit == 0 || limit > s.listLimit {
		limit = s.listLimit
	}

	snapshot := s.sortedSnapshot()
	if limit > len(snapshot) {
		limit = len(snapshot)
	}
	out := make([]model.JobRecord, limit)
	copy(out, snapshot[:limit])
	return out, nil
}

// Count returns the number of tracked jobs.
func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// sortedSnapshot returns the cached newest-first view, rebuilding it when a
// write invalidated the cache.
func (s *MemStore) sortedSnapshot() []model.JobRecord {
	s.mu.RLock()
	if s.snapshot != nil {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil {
		return s.snapshot
	}
	snap := make([]model.JobRecord, 0, len(s.records))
	for _, rec := range s.records {
		snap = append(snap, rec)
	}
	sort.Slice(snap, func(i, j int) bool {
		if !snap[i].SubmittedAt.Equal(snap[j].SubmittedAt) {
			return snap[i].SubmittedAt.After(snap[j].SubmittedAt)
		}
		return snap[i].JobID < snap[j].JobID
	})
	s.snapshot = snap
	return snap
}
