package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/notifications"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestKafkaPublisherKeysByRecord(t *testing.T) {
	w := &fakeWriter{}
	p := notifications.NewKafkaPublisher(w, time.Second)

	record := uuid.New()
	err := p.Publish(context.Background(), notifications.Event{
		ID:       uuid.New(),
		Type:     notifications.TypeTransition,
		RecordID: &record,
		From:     "DRAFT",
		To:       "REVIEW",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("messages: got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != record.String() {
		t.Errorf("key: got %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != notifications.TypeTransition {
		t.Errorf("headers: %+v", msg.Headers)
	}

	var decoded notifications.Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.To != "REVIEW" {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	cause := errors.New("broker down")
	p := notifications.NewKafkaPublisher(&fakeWriter{err: cause}, time.Second)

	if err := p.Publish(context.Background(), notifications.Event{}); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("nope")}
	f := notifications.Fanout{ok, bad}

	if err := f.Publish(context.Background(), notifications.Event{Type: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if len(ok.events) != 1 || len(bad.events) != 1 {
		t.Error("every publisher should receive the event")
	}
	if err := f.Close(); err != nil || !ok.closed || !bad.closed {
		t.Errorf("close: %v", err)
	}
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	w := &fakeWriter{}
	d := notifications.NewDispatcher(notifications.NewKafkaPublisher(w, time.Second), 16, discard())

	lc := lifecycle.New()
	d.Start(lc)

	for range 5 {
		d.Notify(context.Background(), notifications.Event{Type: notifications.TypeTransition})
	}

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := w.count(); got != 5 {
		t.Errorf("delivered %d of 5", got)
	}
	if !w.closed {
		t.Error("writer should be closed on shutdown")
	}
	if d.Dropped() != 0 {
		t.Errorf("dropped: %d", d.Dropped())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	p := &recordingPublisher{}
	d := notifications.NewDispatcher(p, 1, discard())

	d.Notify(context.Background(), notifications.Event{Type: "a"})
	d.Notify(context.Background(), notifications.Event{Type: "b"})

	if d.Dropped() != 1 {
		t.Errorf("dropped: got %d, want 1", d.Dropped())
	}
}

func TestDispatcherStampsEvents(t *testing.T) {
	p := &recordingPublisher{}
	d := notifications.NewDispatcher(p, 4, discard())
	lc := lifecycle.New()
	d.Start(lc)

	d.Notify(context.Background(), notifications.Event{Type: "a"})
	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if len(p.events) != 1 {
		t.Fatalf("events: %d", len(p.events))
	}
	if p.events[0].ID == uuid.Nil || p.events[0].Timestamp.IsZero() {
		t.Errorf("event not stamped: %+v", p.events[0])
	}
}
