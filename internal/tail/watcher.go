package tail

import (
	"context"
	"time"

	"github.com/aspromise/ktv-casting/internal/castsync"
)

// EventType represents the type of session event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventQueueEmpty
	EventDeviceLost
	EventDeviceRecovered
	EventTerminated
)

// Event represents a session change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *castsync.Snapshot
	Current   *castsync.Snapshot
}

// Source exposes the session state being watched.
type Source interface {
	Snapshot() castsync.Snapshot
}

// Watcher polls a session for changes and emits events.
type Watcher struct {
	src      Source
	interval time.Duration
	events   chan Event
	done     chan struct{}
}

// NewWatcher creates a new session watcher.
func NewWatcher(src Source, interval time.Duration) *Watcher {
	if interval == 0 {
		interval = 500 * time.Millisecond
	}
	return &Watcher{
		src:      src,
		interval: interval,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
	}
}

// Events returns the channel of session events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins polling for changes.
func (w *Watcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.events)

	var prev *castsync.Snapshot

	for {
		curr := w.src.Snapshot()
		for _, e := range diffSnapshots(prev, &curr) {
			select {
			case w.events <- e:
			default:
				// Drop event if channel is full
			}
		}
		prev = &curr

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

// diffSnapshots compares two snapshots and returns detected events.
func diffSnapshots(prev, curr *castsync.Snapshot) []Event {
	if curr == nil {
		return nil
	}

	now := time.Now()
	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	// First poll - no previous snapshot
	if prev == nil {
		if curr.Instructed != nil {
			add(EventTrackChange)
		}
		return events
	}

	if curr.Advances > prev.Advances {
		add(EventTrackComplete)
	}

	if curr.Instructed != nil && !curr.Instructed.Same(prev.Instructed) {
		add(EventTrackChange)
	}

	if curr.State != prev.State {
		switch {
		case curr.State == castsync.StateIdle && prev.Instructed != nil && curr.Instructed == nil:
			add(EventQueueEmpty)
		case curr.State == castsync.StateRecovering:
			add(EventDeviceLost)
		case prev.State == castsync.StateRecovering && curr.State != castsync.StateTerminated:
			add(EventDeviceRecovered)
		case curr.State == castsync.StateTerminated:
			add(EventTerminated)
		}
	}

	return events
}
