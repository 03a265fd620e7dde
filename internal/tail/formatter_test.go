package tail

import (
	"strings"
	"testing"
	"time"

	"github.com/aspromise/ktv-casting/internal/castsync"
	"github.com/aspromise/ktv-casting/internal/core"
)

func TestFormatterLine(t *testing.T) {
	ts := time.Date(2024, 5, 1, 20, 15, 30, 0, time.UTC)
	e := Event{
		Type:      EventTrackChange,
		Timestamp: ts,
		Current:   snap(castsync.StateCasting, &core.Track{ID: "1", Title: "Song A"}, 0),
	}

	tests := []struct {
		name string
		opts []FormatterOption
		want string
	}{
		{"default", nil, "🎤 Now playing: Song A"},
		{"no emoji", []FormatterOption{WithEmoji(false)}, "Now playing: Song A"},
		{"timestamp", []FormatterOption{WithEmoji(false), WithTimestamp(true)}, "20:15:30 Now playing: Song A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFormatter(tt.opts...).Format(e)
			if got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatterDescriptions(t *testing.T) {
	prev := snap(castsync.StateCasting, &core.Track{ID: "1", Title: "Song A"}, 0)
	curr := snap(castsync.StateRecovering, nil, 1)
	f := NewFormatter(WithEmoji(false))

	tests := []struct {
		typ  EventType
		want string
	}{
		{EventTrackComplete, "Finished: Song A"},
		{EventQueueEmpty, "Queue is empty, waiting for songs"},
		{EventDeviceLost, "Lost Living Room TV, searching..."},
		{EventDeviceRecovered, "Reconnected to Living Room TV"},
		{EventTerminated, "Session ended"},
	}

	for _, tt := range tests {
		got := f.Format(Event{Type: tt.typ, Previous: prev, Current: curr})
		if got != tt.want {
			t.Errorf("Format(%s) = %q, want %q", TypeName(tt.typ), got, tt.want)
		}
	}
}

func TestFormatterTemplate(t *testing.T) {
	e := Event{
		Type:      EventTrackChange,
		Timestamp: time.Now(),
		Current:   snap(castsync.StateCasting, &core.Track{ID: "1", Title: "Song A", URL: "http://media/a.mp4"}, 0),
	}

	got := NewFormatter(WithTemplate("{{.Type}}|{{.Title}}|{{.Device}}|{{.State}}")).Format(e)
	if got != "track_change|Song A|Living Room TV|casting" {
		t.Errorf("Format() = %q", got)
	}

	// Invalid templates fall back to the line format.
	got = NewFormatter(WithTemplate("{{.Broken"), WithEmoji(false)).Format(e)
	if !strings.HasPrefix(got, "Now playing") {
		t.Errorf("Format() with bad template = %q", got)
	}
}

func TestFormatterDevice(t *testing.T) {
	e := Event{
		Type:    EventTrackChange,
		Current: snap(castsync.StateCasting, &core.Track{ID: "1", Title: "Song A"}, 0),
	}
	got := NewFormatter(WithEmoji(false), WithDevice(true)).Format(e)
	if got != "Now playing: Song A [Living Room TV]" {
		t.Errorf("Format() = %q", got)
	}
}
