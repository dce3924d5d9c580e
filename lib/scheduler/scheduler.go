package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shortwatch-backend/lib/dispatch"
	"shortwatch-backend/lib/markerstore"
	"shortwatch-backend/lib/snapshot"
	"shortwatch-backend/lib/snapshotstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lib/scheduler")
var meter = otel.Meter("lib/scheduler")

var cycleCounter, _ = meter.Int64Counter("scheduler_cycles")
var skipCounter, _ = meter.Int64Counter("scheduler_skipped_cycles")
var failureCounter, _ = meter.Int64Counter("scheduler_failed_cycles")

// Marker is the source-reported last-modification indicator. Value is the
// opaque string compared against the stored marker; Time, when the source
// provides one, becomes the cycle's observed_at so reruns stay comparable.
type Marker struct {
	Value string
	Time  time.Time
}

// Fetcher retrieves one dataset from its source. FetchMarker must be cheap
// relative to FetchSnapshot; the loop uses it to gate the expensive fetch.
type Fetcher interface {
	FetchMarker(ctx context.Context) (Marker, error)
	FetchSnapshot(ctx context.Context) ([]snapshot.RawRow, error)
}

type state int

const (
	stateIdle state = iota
	stateCheckingMarker
	stateSkipping
	stateFetching
	stateProcessing
	statePersisting
	stateNotifying
	stateBackoff
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCheckingMarker:
		return "checking_marker"
	case stateSkipping:
		return "skipping"
	case stateFetching:
		return "fetching"
	case stateProcessing:
		return "processing"
	case statePersisting:
		return "persisting"
	case stateNotifying:
		return "notifying"
	case stateBackoff:
		return "backoff"
	}
	return "unknown"
}

type Options struct {
	Schema   snapshot.Schema
	Fetcher  Fetcher
	Store    snapshotstore.Store
	Markers  markerstore.Store
	Delivery dispatch.Delivery
	Notify   dispatch.Config

	// PollInterval is the sleep between cycles after a success or skip.
	PollInterval time.Duration
	// BackoffBase and BackoffMax bound the retry delay after a failure.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// FetchTimeout caps each individual network call so a stuck call
	// cannot starve the loop.
	FetchTimeout time.Duration
}

// Loop drives one dataset's fetch -> normalize -> diff -> persist -> notify
// pipeline. Datasets run as independent loops; within one loop the cycle
// steps are strictly sequential and never overlap.
type Loop struct {
	opts Options

	// injection points for tests
	sleep  func(ctx context.Context, d time.Duration)
	jitter func() float64
	now    func() time.Time
}

func New(opts Options) *Loop {
	if opts.PollInterval == 0 {
		opts.PollInterval = 15 * time.Minute
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 30 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Minute
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = time.Minute
	}
	if opts.Delivery == nil {
		opts.Delivery = dispatch.LogDelivery{}
	}
	return &Loop{
		opts:   opts,
		sleep:  sleepContext,
		jitter: defaultJitter,
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled. Transient failures back off and retry
// forever; they never terminate the loop.
func (l *Loop) Run(ctx context.Context) {
	dataset := l.opts.Schema.Dataset
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		err := l.cycle(ctx)
		if err == nil {
			attempt = 0
			l.transition(ctx, stateIdle)
			l.sleep(ctx, l.opts.PollInterval)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		failureCounter.Add(ctx, 1)
		delay := Delay(attempt, l.opts.BackoffBase, l.opts.BackoffMax, l.jitter())
		if errors.Is(err, snapshot.ErrSchemaMismatch) {
			// structural change in the source: loud, needs an
			// operator. the marker was not advanced so the same
			// update keeps being reattempted.
			slog.ErrorContext(ctx, "cycle aborted on schema mismatch",
				"dataset", dataset, "retry_in", delay, "err", err)
		} else {
			slog.WarnContext(ctx, "cycle failed",
				"dataset", dataset, "attempt", attempt, "retry_in", delay, "err", err)
		}

		attempt++
		l.transition(ctx, stateBackoff)
		l.sleep(ctx, delay)
	}
}

// cycle runs one pass of the state machine. The marker is advanced only
// after every step has completed, so any error leaves the same update
// detectable on the next attempt.
func (l *Loop) cycle(ctx context.Context) error {
	dataset := l.opts.Schema.Dataset

	ctx, span := tracer.Start(ctx, "cycle")
	defer span.End()
	span.SetAttributes(attribute.String("dataset", dataset))
	cycleCounter.Add(ctx, 1)

	l.transition(ctx, stateCheckingMarker)
	marker, err := l.fetchMarker(ctx)
	if err != nil {
		return fail(span, err)
	}

	stored, known, err := l.opts.Markers.Get(dataset)
	if err != nil {
		return fail(span, err)
	}
	if known && stored == marker.Value {
		l.transition(ctx, stateSkipping)
		skipCounter.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("skipped", true))
		return nil
	}

	observedAt := marker.Time
	if observedAt.IsZero() {
		observedAt = l.now().Truncate(time.Minute)
	}

	l.transition(ctx, stateFetching)
	raw, err := l.fetchSnapshot(ctx)
	if err != nil {
		return fail(span, err)
	}

	l.transition(ctx, stateProcessing)
	records, err := snapshot.Normalize(ctx, raw, l.opts.Schema, observedAt)
	if err != nil {
		return fail(span, err)
	}

	lastKnown, err := l.opts.Store.LatestAll(ctx, dataset)
	if err != nil {
		return fail(span, err)
	}
	changes := snapshot.Diff(records, lastKnown, l.opts.Schema, observedAt)
	span.SetAttributes(attribute.Int("changes", len(changes)))

	l.transition(ctx, statePersisting)
	err = l.opts.Store.AppendChanges(ctx, dataset, changes)
	if err != nil {
		return fail(span, err)
	}

	l.transition(ctx, stateNotifying)
	events := dispatch.Dispatch(changes, lastKnown, l.opts.Schema, l.opts.Notify)
	for _, event := range events {
		// best effort: the change rows are already durable, a failed
		// delivery is dropped rather than retried.
		err := l.opts.Delivery.Deliver(ctx, event)
		if err != nil {
			slog.WarnContext(ctx, "delivery failed",
				"dataset", dataset, "subject", event.Subject, "err", err)
		}
	}

	err = l.opts.Markers.Set(dataset, marker.Value)
	if err != nil {
		return fail(span, err)
	}

	if len(changes) > 0 {
		slog.InfoContext(ctx, "cycle persisted changes",
			"dataset", dataset, "changes", len(changes), "notified", len(events))
	}
	return nil
}

func (l *Loop) fetchMarker(ctx context.Context) (Marker, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()
	return l.opts.Fetcher.FetchMarker(ctx)
}

func (l *Loop) fetchSnapshot(ctx context.Context) ([]snapshot.RawRow, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()
	return l.opts.Fetcher.FetchSnapshot(ctx)
}

func (l *Loop) transition(ctx context.Context, next state) {
	slog.DebugContext(ctx, "state transition",
		"dataset", l.opts.Schema.Dataset, "state", next.String())
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
