package taskx_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/taskx"
)

func TestRunner_RunsTaskOnInterval(t *testing.T) {
	var runs atomic.Int64

	r := taskx.NewRunner()
	r.Register(taskx.Task{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if runs.Load() == 0 {
		t.Fatal("task never ran")
	}
}

func TestRunner_RunAtStart(t *testing.T) {
	var runs atomic.Int64

	r := taskx.NewRunner()
	r.Register(taskx.Task{
		Name:       "immediate",
		Interval:   time.Hour,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if runs.Load() != 1 {
		t.Fatalf("expected exactly one immediate run, got %d", runs.Load())
	}
}

func TestRunner_DoubleStart(t *testing.T) {
	r := taskx.NewRunner()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	// Give the first Start a moment to take the running flag.
	time.Sleep(20 * time.Millisecond)
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while running")
	}

	cancel()
	<-done
}
