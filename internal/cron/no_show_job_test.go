package cron

import (
	"context"
	"testing"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/google/uuid"
)

type fakeNoShowMarker struct {
	assignments []models.Assignment
	marked      map[uuid.UUID]bool
	lastBefore  time.Time
}

func (f *fakeNoShowMarker) ListNoShowCandidates(_ context.Context, before time.Time) ([]models.Assignment, error) {
	f.lastBefore = before
	return f.assignments, nil
}

func (f *fakeNoShowMarker) MarkNoShow(_ context.Context, id uuid.UUID) (bool, error) {
	if f.marked[id] {
		return false, nil
	}
	if f.marked == nil {
		f.marked = map[uuid.UUID]bool{}
	}
	f.marked[id] = true
	return true, nil
}

func TestNoShowJobQueriesBeforeStartOfToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	candidate := unconfirmedAssignment(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	svc := &fakeNoShowMarker{assignments: []models.Assignment{candidate}}
	jobIface, err := NewNoShowJob(NoShowJobParams{Logger: newTestLogger(), Assignments: svc})
	if err != nil {
		t.Fatalf("NewNoShowJob: %v", err)
	}
	job := jobIface.(*noShowJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantCutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !svc.lastBefore.Equal(wantCutoff) {
		t.Fatalf("expected cutoff %s, got %s", wantCutoff, svc.lastBefore)
	}
	if !svc.marked[candidate.ID] {
		t.Fatal("expected candidate marked as no-show")
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(svc.marked) != 1 {
		t.Fatalf("expected one mark across reruns, got %d", len(svc.marked))
	}
}
