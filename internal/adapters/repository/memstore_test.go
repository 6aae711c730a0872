package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rdarie/spikepipe/internal/domain/model"
)

func newRecord(id string, submitted time.Time) model.JobRecord {
	return model.JobRecord{
		JobID:       id,
		State:       model.StateQueued,
		SubmittedAt: submitted,
		Spec:        model.JobSpec{RecordingPath: "/data/" + id, Convert: true},
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	rec := newRecord("job-1", time.Now())
	if err := s.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, rec); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create = %v, want ErrAlreadyExists", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Spec.RecordingPath != rec.Spec.RecordingPath {
		t.Errorf("got %+v, want %+v", got, rec)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Create(ctx, newRecord("job-1", time.Now())); err != nil {
		t.Fatal(err)
	}

	updated, err := s.Update(ctx, "job-1", func(rec *model.JobRecord) {
		rec.State = model.StateConverting
		rec.FramesDone = 1234
		rec.JobID = "hijacked"
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.State != model.StateConverting || updated.FramesDone != 1234 {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.JobID != "job-1" {
		t.Errorf("job ID changed to %q", updated.JobID)
	}

	if _, err := s.Update(ctx, "missing", func(*model.JobRecord) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		rec := newRecord(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Second))
		if err := s.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("list returned %d records, want 3", len(got))
	}
	for i, want := range []string{"job-4", "job-3", "job-2"} {
		if got[i].JobID != want {
			t.Errorf("list[%d] = %s, want %s", i, got[i].JobID, want)
		}
	}

	if _, err := s.List(ctx, -1); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("negative limit = %v, want ErrInvalidLimit", err)
	}

	// Zero means "up to the cap".
	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("list(0) returned %d records, want 5", len(all))
	}
}

func TestListLimitOption(t *testing.T) {
	s := NewMemStore(WithListLimit(2))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := s.Create(ctx, newRecord(fmt.Sprintf("job-%d", i), time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.List(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("list returned %d records, want cap 2", len(got))
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Create(ctx, newRecord("job-1", time.Now())); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = s.Update(ctx, "job-1", func(rec *model.JobRecord) {
					rec.FramesDone++
				})
				_, _ = s.List(ctx, 10)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FramesDone != 800 {
		t.Errorf("frames done = %d, want 800", got.FramesDone)
	}
	if s.Count(ctx) != 1 {
		t.Errorf("count = %d, want 1", s.Count(ctx))
	}
}
