package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Formatter renders session events as single lines.
type Formatter struct {
	emoji     bool
	timestamp bool
	device    bool
	template  *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji prefixes lines with an emoji per event type.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) { f.emoji = enabled }
}

// WithTimestamp prefixes lines with the event's wall-clock time.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) { f.timestamp = enabled }
}

// WithDevice appends the renderer name to each line.
func WithDevice(enabled bool) FormatterOption {
	return func(f *Formatter) { f.device = enabled }
}

// WithTemplate sets a text/template used instead of the line format.
// An empty or unparsable template is ignored.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl == "" {
			return
		}
		if t, err := template.New("event").Parse(tmpl); err == nil {
			f.template = t
		}
	}
}

// NewFormatter creates a formatter. Emoji are on by default.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{emoji: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders e.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	parts := make([]string, 0, 4)
	if f.timestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.emoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, f.eventDescription(e))
	if f.device && e.Current != nil && e.Current.Device.Name != "" {
		parts = append(parts, "["+e.Current.Device.Name+"]")
	}
	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      TypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Current != nil {
		if e.Current.Instructed != nil {
			data.Title = e.Current.Instructed.DisplayTitle()
			data.URL = e.Current.Instructed.URL
		}
		data.Device = e.Current.Device.Name
		data.State = e.Current.StateName
		data.Revision = e.Current.Revision
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	Title     string
	URL       string
	Device    string
	State     string
	Revision  uint64
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current != nil && e.Current.Instructed != nil {
			return fmt.Sprintf("Now playing: %s", e.Current.Instructed.DisplayTitle())
		}
		return "Track changed"

	case EventTrackComplete:
		if e.Previous != nil && e.Previous.Instructed != nil {
			return fmt.Sprintf("Finished: %s", e.Previous.Instructed.DisplayTitle())
		}
		return "Track completed"

	case EventQueueEmpty:
		return "Queue is empty, waiting for songs"

	case EventDeviceLost:
		if e.Current != nil && e.Current.Device.Name != "" {
			return fmt.Sprintf("Lost %s, searching...", e.Current.Device.Name)
		}
		return "Lost renderer, searching..."

	case EventDeviceRecovered:
		if e.Current != nil && e.Current.Device.Name != "" {
			return fmt.Sprintf("Reconnected to %s", e.Current.Device.Name)
		}
		return "Reconnected"

	case EventTerminated:
		return "Session ended"

	default:
		return "Unknown event"
	}
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎤"
	case EventTrackComplete:
		return "✅"
	case EventQueueEmpty:
		return "💤"
	case EventDeviceLost:
		return "📡"
	case EventDeviceRecovered:
		return "📺"
	case EventTerminated:
		return "⏹️"
	default:
		return "❓"
	}
}

// TypeName returns the machine-readable name of an event type.
func TypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventQueueEmpty:
		return "queue_empty"
	case EventDeviceLost:
		return "device_lost"
	case EventDeviceRecovered:
		return "device_recovered"
	case EventTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
