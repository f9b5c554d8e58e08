package job

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestSweeperEvictsExpiredJobs(t *testing.T) {
	s := NewStore()
	j := s.Create("in.png")
	_ = s.MarkProcessing(j.ID)
	_ = s.MarkCompleted(j.ID, "out.png")

	// Zero retention makes every record expired on the first sweep.
	sw := NewSweeper(s, 10*time.Millisecond, 0, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(ctx)

	deadline := time.After(2 * time.Second)
	for s.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper did not evict within deadline, %d jobs remain", s.Len())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := s.Get(j.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("evicted job should report not found, got %v", err)
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	s := NewStore()
	sw := NewSweeper(s, time.Millisecond, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after context cancel")
	}
}
