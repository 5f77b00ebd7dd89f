// Package lifecycle coordinates startup hooks, shutdown hooks, readiness checks and
// long-running background workers for the service process.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator manages startup and shutdown hooks for the application lifecycle.
type Coordinator struct {
	ctx        context.Context
	cancel     context.CancelFunc
	startupWg  sync.WaitGroup
	shutdownWg sync.WaitGroup
	workerWg   sync.WaitGroup
	ready      bool
	readyMu    sync.RWMutex
	checkers   map[string]ReadinessChecker
}

// New creates a Coordinator with a cancellable context.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:      ctx,
		cancel:   cancel,
		checkers: make(map[string]ReadinessChecker),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a function to run concurrently during startup.
func (c *Coordinator) OnStartup(fn func()) {
	c.startupWg.Go(fn)
}

// OnShutdown registers a function to run concurrently during shutdown.
// Shutdown hooks should block on <-c.Context().Done() before executing cleanup.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdownWg.Go(fn)
}

// Go runs fn on a tracked goroutine with the coordinator context.
// Shutdown waits for every worker to return, so fn must honor ctx cancellation.
func (c *Coordinator) Go(fn func(ctx context.Context)) {
	c.workerWg.Go(func() {
		fn(c.ctx)
	})
}

// Register adds a named readiness checker consulted by Ready.
func (c *Coordinator) Register(name string, checker ReadinessChecker) {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	c.checkers[name] = checker
}

// Ready returns true after all startup hooks have completed and every
// registered checker reports ready.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	if !c.ready {
		return false
	}
	for _, checker := range c.checkers {
		if !checker.Ready() {
			return false
		}
	}
	return true
}

// NotReady returns the sorted names of registered checkers that are not ready.
func (c *Coordinator) NotReady() []string {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()

	var names []string
	for _, name := range slices.Sorted(maps.Keys(c.checkers)) {
		if !c.checkers[name].Ready() {
			names = append(names, name)
		}
	}
	return names
}

// WaitForStartup blocks until all startup hooks have completed and sets the ready flag.
func (c *Coordinator) WaitForStartup() {
	c.startupWg.Wait()
	c.readyMu.Lock()
	c.ready = true
	c.readyMu.Unlock()
}

// Shutdown cancels the context and waits for shutdown hooks and background
// workers to complete within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.workerWg.Wait()
		c.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
