package lifecycle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestReadyAfterStartup(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}

	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	err := lc.Shutdown(50 * time.Millisecond)
	if err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}

type flag struct{ ok atomic.Bool }

func (f *flag) Ready() bool { return f.ok.Load() }

func TestRegisteredCheckersGateReadiness(t *testing.T) {
	lc := lifecycle.New()
	db := &flag{}
	lc.Register("database", db)
	lc.WaitForStartup()

	if lc.Ready() {
		t.Error("should not be ready while a checker reports not ready")
	}
	if got := lc.NotReady(); len(got) != 1 || got[0] != "database" {
		t.Errorf("NotReady() = %v, want [database]", got)
	}

	db.ok.Store(true)

	if !lc.Ready() {
		t.Error("should be ready once every checker reports ready")
	}
	if got := lc.NotReady(); len(got) != 0 {
		t.Errorf("NotReady() = %v, want empty", got)
	}
}

func TestShutdownWaitsForWorkers(t *testing.T) {
	lc := lifecycle.New()

	var stopped atomic.Bool
	started := make(chan struct{})
	lc.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		stopped.Store(true)
	})

	<-started
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !stopped.Load() {
		t.Error("shutdown returned before the worker stopped")
	}
}
