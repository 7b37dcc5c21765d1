package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-sitemap-backend/internal/services"
)

// stubRebuilder counts calls and can hold a pass open until released.
type stubRebuilder struct {
	mu    sync.Mutex
	calls int32
	block chan struct{}
	mode  services.RebuildMode
}

func (s *stubRebuilder) Rebuild(ctx context.Context, mode services.RebuildMode) (*services.RebuildResult, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &services.RebuildResult{Mode: mode, Success: true}, nil
}

func TestSweeper_StartRejectsBadSpec(t *testing.T) {
	s := NewSweeper(&stubRebuilder{}, "not a cron spec", time.Minute)
	if err := s.Start(); err == nil {
		t.Error("expected error for malformed cron spec")
	}
}

func TestSweeper_StartAndStop(t *testing.T) {
	s := NewSweeper(&stubRebuilder{}, "*/5 * * * *", time.Minute)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	// Stop on a never-started sweeper is a no-op.
	NewSweeper(&stubRebuilder{}, "*/5 * * * *", time.Minute).Stop()
}

func TestSweep_RunsIncremental(t *testing.T) {
	stub := &stubRebuilder{}
	s := NewSweeper(stub, "*/5 * * * *", time.Minute)

	s.sweep()
	if got := atomic.LoadInt32(&stub.calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.mode != services.RebuildIncremental {
		t.Errorf("mode = %s, want INCREMENTAL", stub.mode)
	}
}

func TestSweep_OverlappingTickDropped(t *testing.T) {
	stub := &stubRebuilder{block: make(chan struct{})}
	s := NewSweeper(stub, "*/5 * * * *", time.Minute)

	started := make(chan struct{})
	go func() {
		close(started)
		s.sweep()
	}()
	<-started
	// Wait until the first pass is inside Rebuild.
	for atomic.LoadInt32(&stub.calls) == 0 {
		time.Sleep(time.Millisecond)
	}

	// A tick while the pass is in flight must not invoke Rebuild again.
	s.sweep()
	if got := atomic.LoadInt32(&stub.calls); got != 1 {
		t.Errorf("calls = %d, want 1 (overlapping tick dropped)", got)
	}

	close(stub.block)
}
