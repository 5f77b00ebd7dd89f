// Package notifications publishes lifecycle events fire-and-forget. Callers hand
// events to a Notifier; a Dispatcher buffers them and a single worker forwards them to
// a Publisher such as the log or a Kafka topic.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeTransition       = "record.transitioned"
	TypeReviewerAssigned = "reviewer.assigned"
	TypeCampaignStarted  = "campaign.started"
	TypeCampaignFinished = "campaign.finished"
)

// Event is one lifecycle notification.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	RecordID   *uuid.UUID     `json:"record_id,omitempty"`
	CampaignID *uuid.UUID     `json:"campaign_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

// Key returns the partition key of the event: the record or campaign it concerns.
func (e Event) Key() string {
	switch {
	case e.RecordID != nil:
		return e.RecordID.String()
	case e.CampaignID != nil:
		return e.CampaignID.String()
	}
	return e.ID.String()
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(context.Context, Event) {})

// Publisher delivers events to a destination.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Fanout publishes each event to every publisher, joining their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
