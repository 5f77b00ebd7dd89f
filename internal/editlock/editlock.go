// Package editlock provides the advisory per-record edit session guard. Sessions
// expire after a fixed TTL so an abandoned session cannot block a record forever.
package editlock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
)

// Session is one actor's claim on a record.
type Session struct {
	RecordID  uuid.UUID `json:"record_id"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Guard tracks edit sessions in memory.
type Guard struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a Guard whose sessions last ttl after their last refresh.
func New(ttl time.Duration, logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		sessions: make(map[uuid.UUID]Session),
		ttl:      ttl,
		logger:   logger.With("system", "editlock"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func conflict(s Session) error {
	return outcome.New(outcome.Conflict, fmt.Sprintf("record is being edited by %s", s.ActorName))
}

// active returns the unexpired session of recordID. Callers hold g.mu.
func (g *Guard) active(recordID uuid.UUID, now time.Time) (Session, bool) {
	s, ok := g.sessions[recordID]
	if !ok {
		return Session{}, false
	}
	if now.After(s.ExpiresAt) {
		delete(g.sessions, recordID)
		return Session{}, false
	}
	return s, true
}

// Begin opens or refreshes actor's session on recordID. A session held by another
// actor is a CONFLICT naming the holder.
func (g *Guard) Begin(recordID uuid.UUID, actor identity.Identity) (Session, error) {
	s, _, err := g.begin(recordID, actor)
	return s, err
}

func (g *Guard) begin(recordID uuid.UUID, actor identity.Identity) (Session, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	s, held := g.active(recordID, now)
	if held && s.ActorID != actor.ActorID {
		return Session{}, false, conflict(s)
	}

	if !held {
		s = Session{
			RecordID:  recordID,
			ActorID:   actor.ActorID,
			ActorName: actor.DisplayName(),
			StartedAt: now,
		}
	}
	s.ExpiresAt = now.Add(g.ttl)
	g.sessions[recordID] = s

	if !held {
		g.logger.Debug("edit session started", "record", recordID, "actor", actor.ActorID)
	}
	return s, !held, nil
}

// Acquire holds recordID for the duration of one operation. The returned release
// ends the session only when Acquire opened it, so a session the actor already held
// survives the operation.
func (g *Guard) Acquire(recordID uuid.UUID, actor identity.Identity) (release func(), err error) {
	_, created, err := g.begin(recordID, actor)
	if err != nil {
		return nil, err
	}
	if !created {
		return func() {}, nil
	}
	return func() { g.End(recordID, actor.ActorID) }, nil
}

// End closes actor's session on recordID. Ending a session held by another actor is a
// CONFLICT; ending a missing session is a no-op.
func (g *Guard) End(recordID uuid.UUID, actorID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.active(recordID, g.now())
	if !ok {
		return nil
	}
	if s.ActorID != actorID {
		return conflict(s)
	}
	delete(g.sessions, recordID)
	g.logger.Debug("edit session ended", "record", recordID, "actor", actorID)
	return nil
}

// Active returns the current session of recordID, if any.
func (g *Guard) Active(recordID uuid.UUID) (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active(recordID, g.now())
}

// Sweep removes expired sessions and returns how many were removed.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for id, s := range g.sessions {
		if now.After(s.ExpiresAt) {
			delete(g.sessions, id)
			removed++
		}
	}
	return removed
}

// Start sweeps expired sessions every interval until the coordinator shuts down.
func (g *Guard) Start(lc *lifecycle.Coordinator, interval time.Duration) {
	lc.Go(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := g.Sweep(); n > 0 {
					g.logger.Info("expired edit sessions removed", "count", n)
				}
			}
		}
	})
}
