// Package notify publishes pipeline events such as a newly trained model or a salinity alert
// to the event bus.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Event types
const (
	TypeModelPublished = "MODEL_PUBLISHED"
	TypeAlertTriggered = "ALERT_TRIGGERED"
)

// DefaultSource names this service as the event source
const DefaultSource = "ai-service"

var ErrNoPublishers = errors.New("no publishers configured")

// Event is the envelope every bus message carries
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// NewEvent stamps an event with a fresh id and the clock's current time. A nil clock uses
// the real clock.
func NewEvent(clock clockwork.Clock, typ, source string, data map[string]any) Event {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Source:     source,
		OccurredAt: clock.Now().UTC(),
		Data:       data,
	}
}

// Encode serializes the event as the bus payload
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s event, %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a bus payload
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unable to decode event, %w", err)
	}
	return e, nil
}

// Publisher delivers events to a bus
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error {
	return nil
}

// Multi fans an event out to every publisher. Every publisher is attempted and the failures
// are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	if len(m) == 0 {
		return ErrNoPublishers
	}
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
