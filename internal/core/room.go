package core

// Intent is the playback state requested by the room.
type Intent string

const (
	IntentPlaying Intent = "playing"
	IntentPaused  Intent = "paused"
)

// RoomState is a snapshot of the remote room's desired playback.
type RoomState struct {
	Current  *Track  `json:"current_track"`
	Queue    []Track `json:"queue"`
	Intent   Intent  `json:"playback_intent"`
	Revision uint64  `json:"revision"`
}

// HasTrack returns true if the room has a current track.
func (s RoomState) HasTrack() bool {
	return s.Current != nil && s.Current.URL != ""
}

// NewerThan reports whether the state should replace one seen at rev.
func (s RoomState) NewerThan(rev uint64) bool {
	return s.Revision > rev
}

// Paused reports whether the room asked for playback to be paused.
func (s RoomState) Paused() bool {
	return s.Intent == IntentPaused
}

// Upcoming returns the number of queued tracks after the current one.
func (s RoomState) Upcoming() int {
	return len(s.Queue)
}
