package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeWindowResolver struct {
	settled int
	calls   int
	err     error
}

func (f *fakeWindowResolver) ResolveExpiredWindows(context.Context) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.settled, nil
}

func TestCloseWindowsJobResolvesExpiredWindows(t *testing.T) {
	resolver := &fakeWindowResolver{settled: 3}
	job, err := NewCloseWindowsJob(CloseWindowsJobParams{Logger: newTestLogger(), Bids: resolver})
	if err != nil {
		t.Fatalf("NewCloseWindowsJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resolver.calls != 1 {
		t.Fatalf("expected one resolve call, got %d", resolver.calls)
	}
}

func TestCloseWindowsJobPropagatesErrors(t *testing.T) {
	resolver := &fakeWindowResolver{err: errors.New("db down")}
	job, err := NewCloseWindowsJob(CloseWindowsJobParams{Logger: newTestLogger(), Bids: resolver})
	if err != nil {
		t.Fatalf("NewCloseWindowsJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
