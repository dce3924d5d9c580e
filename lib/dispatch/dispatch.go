package dispatch

import (
	"context"
	"log/slog"
	"time"

	"shortwatch-backend/lib/snapshot"
	"shortwatch-backend/lib/textutil"
)

// Event is the structured change notification handed to a delivery channel.
// Formatting and transmission belong entirely to the channel.
type Event struct {
	Dataset  string
	Subject  string
	Kind     snapshot.ChangeKind
	Field    string
	NewValue float64
	// Delta is the signed difference against the previous latest value,
	// nil when the key had no prior value.
	Delta      *float64
	ObservedAt time.Time
}

// Delivery transmits one event. Implementations must not be relied on for
// durability: the persisted change rows are the source of truth and a
// failed delivery is dropped, not retried.
type Delivery interface {
	Deliver(ctx context.Context, event Event) error
}

// Config is the per-dataset notification filter.
type Config struct {
	// Tracked is the allow-list of subjects worth notifying about.
	Tracked []string
	// MatchSubstring switches matching from whole-name equality to
	// substring containment. Both modes ignore case and whitespace.
	MatchSubstring bool
}

// Dispatch filters a cycle's change set down to tracked subjects and
// computes the human-facing delta for each. lastKnown must be the baseline
// the diff ran against, i.e. the state before this cycle was persisted.
func Dispatch(changes []snapshot.Change, lastKnown map[string]snapshot.Record, schema snapshot.Schema, cfg Config) []Event {
	var events []Event
	for _, c := range changes {
		if !matches(c.Key, cfg) {
			continue
		}

		newValue, _ := c.Values[schema.ValueField].(float64)

		var delta *float64
		if prev, ok := lastKnown[c.Key.ID()]; ok {
			if prevValue, ok := prev.Values[schema.ValueField].(float64); ok {
				d := newValue - prevValue
				delta = &d
			}
		}

		events = append(events, Event{
			Dataset:    schema.Dataset,
			Subject:    c.Key.Label(),
			Kind:       c.Kind,
			Field:      schema.ValueField,
			NewValue:   newValue,
			Delta:      delta,
			ObservedAt: c.ObservedAt,
		})
	}
	return events
}

func matches(key snapshot.Key, cfg Config) bool {
	for _, part := range key {
		if textutil.MatchName(part, cfg.Tracked, cfg.MatchSubstring) {
			return true
		}
	}
	return false
}

// LogDelivery writes events to slog. Useful as a default channel and in
// development.
type LogDelivery struct{}

func (LogDelivery) Deliver(ctx context.Context, event Event) error {
	attrs := []any{
		"dataset", event.Dataset,
		"subject", event.Subject,
		"kind", event.Kind,
		"field", event.Field,
		"value", event.NewValue,
		"observed_at", event.ObservedAt,
	}
	if event.Delta != nil {
		attrs = append(attrs, "delta", *event.Delta)
	}
	slog.InfoContext(ctx, "change event", attrs...)
	return nil
}
