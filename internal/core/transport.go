package core

import (
	"strings"
	"time"
)

// TransportState is the renderer's playback state.
type TransportState string

const (
	StatePlaying       TransportState = "PLAYING"
	StatePaused        TransportState = "PAUSED"
	StateStopped       TransportState = "STOPPED"
	StateTransitioning TransportState = "TRANSITIONING"
	StateNoMedia       TransportState = "NO_MEDIA"
	StateErrored       TransportState = "ERRORED"
)

// ParseTransportState maps a UPnP CurrentTransportState value.
func ParseTransportState(s string) TransportState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PLAYING":
		return StatePlaying
	case "PAUSED_PLAYBACK", "PAUSED", "PAUSED_RECORDING":
		return StatePaused
	case "STOPPED":
		return StateStopped
	case "TRANSITIONING":
		return StateTransitioning
	case "NO_MEDIA_PRESENT", "NO_MEDIA":
		return StateNoMedia
	default:
		return StateErrored
	}
}

// Finished reports whether the state means nothing is playing anymore.
func (s TransportState) Finished() bool {
	return s == StateStopped || s == StateNoMedia
}

// TransportStatus is one observation of the renderer.
type TransportStatus struct {
	State      TransportState `json:"state"`
	Position   time.Duration  `json:"position"`
	Duration   time.Duration  `json:"duration"`
	TrackURI   string         `json:"track_uri"`
	TrackTitle string         `json:"track_title,omitempty"`
	ObservedAt time.Time      `json:"observed_at"`
}

// Remaining returns the time left in the current media, or false if unknown.
func (s TransportStatus) Remaining() (time.Duration, bool) {
	if s.Duration <= 0 {
		return 0, false
	}
	left := s.Duration - s.Position
	if left < 0 {
		left = 0
	}
	return left, true
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s TransportStatus) ProgressPercent() float64 {
	if s.Duration == 0 {
		return 0
	}
	return float64(s.Position) / float64(s.Duration) * 100
}
