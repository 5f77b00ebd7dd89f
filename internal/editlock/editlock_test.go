package editlock_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/editlock"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var (
	ada   = identity.Identity{ActorID: "u-1", ActorRole: "editor", ActorName: "Ada"}
	grace = identity.Identity{ActorID: "u-2", ActorRole: "editor", ActorName: "Grace"}
)

func newGuard() (*editlock.Guard, *clock) {
	c := &clock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	g := editlock.New(15*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)), editlock.WithClock(c.now))
	return g, c
}

func TestBeginConflictNamesHolder(t *testing.T) {
	g, _ := newGuard()
	record := uuid.New()

	if _, err := g.Begin(record, ada); err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err := g.Begin(record, grace)
	if outcome.KindOf(err) != outcome.Conflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if !strings.Contains(err.Error(), "Ada") {
		t.Errorf("error should name the holder: %v", err)
	}
}

func TestBeginRefreshesSameActor(t *testing.T) {
	g, c := newGuard()
	record := uuid.New()

	first, _ := g.Begin(record, ada)
	c.advance(10 * time.Minute)
	second, err := g.Begin(record, ada)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if !second.StartedAt.Equal(first.StartedAt) {
		t.Error("refresh should keep the start time")
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Error("refresh should extend expiry")
	}
}

func TestSessionExpires(t *testing.T) {
	g, c := newGuard()
	record := uuid.New()

	g.Begin(record, ada)
	c.advance(16 * time.Minute)

	if _, ok := g.Active(record); ok {
		t.Fatal("session should have expired")
	}
	if _, err := g.Begin(record, grace); err != nil {
		t.Fatalf("begin after expiry: %v", err)
	}
}

func TestEnd(t *testing.T) {
	g, _ := newGuard()
	record := uuid.New()
	g.Begin(record, ada)

	if err := g.End(record, grace.ActorID); outcome.KindOf(err) != outcome.Conflict {
		t.Fatalf("non-holder end: got %v", err)
	}
	if err := g.End(record, ada.ActorID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, ok := g.Active(record); ok {
		t.Error("session should be gone")
	}
	if err := g.End(record, ada.ActorID); err != nil {
		t.Errorf("ending a missing session: %v", err)
	}
}

func TestAcquireKeepsExistingSession(t *testing.T) {
	g, _ := newGuard()
	held, fresh := uuid.New(), uuid.New()

	g.Begin(held, ada)
	release, err := g.Acquire(held, ada)
	if err != nil {
		t.Fatalf("acquire held: %v", err)
	}
	release()
	if _, ok := g.Active(held); !ok {
		t.Error("pre-existing session should survive release")
	}

	release, err = g.Acquire(fresh, ada)
	if err != nil {
		t.Fatalf("acquire fresh: %v", err)
	}
	release()
	if _, ok := g.Active(fresh); ok {
		t.Error("session opened by acquire should be released")
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	g, _ := newGuard()
	record := uuid.New()

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 20 {
		wg.Go(func() {
			<-start
			actor := identity.Identity{ActorID: uuid.NewString(), ActorRole: "editor", ActorName: "actor"}
			if _, err := g.Acquire(record, actor); err == nil {
				wins.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one holder, got %d", wins.Load())
	}
}

func TestSweep(t *testing.T) {
	g, c := newGuard()
	g.Begin(uuid.New(), ada)
	g.Begin(uuid.New(), grace)
	c.advance(20 * time.Minute)
	g.Begin(uuid.New(), ada)

	if n := g.Sweep(); n != 2 {
		t.Errorf("swept %d, want 2", n)
	}
}

func TestHandler(t *testing.T) {
	g, _ := newGuard()
	gate, err := permissions.New()
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	mux := http.NewServeMux()
	routes.Register(mux, editlock.NewHandler(g, gate, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes())

	record := uuid.New()
	do := func(method string, who identity.Identity) int {
		req := httptest.NewRequest(method, "/products/"+record.String()+"/session", nil)
		req = req.WithContext(identity.WithIdentity(req.Context(), who))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("POST", ada); code != http.StatusOK {
		t.Fatalf("begin: %d", code)
	}
	if code := do("POST", grace); code != http.StatusConflict {
		t.Errorf("competing begin: %d", code)
	}
	if code := do("GET", grace); code != http.StatusOK {
		t.Errorf("status: %d", code)
	}
	if code := do("DELETE", ada); code != http.StatusNoContent {
		t.Errorf("end: %d", code)
	}
	viewer := identity.Identity{ActorID: "u-3", ActorRole: "viewer"}
	if code := do("POST", viewer); code != http.StatusForbidden {
		t.Errorf("viewer begin: %d", code)
	}
}
