package core

import "time"

// Track represents a song selected in the remote room.
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Duration time.Duration `json:"duration"`
}

// Same reports whether two tracks refer to the same queue entry.
func (t *Track) Same(other *Track) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	if t.ID != "" || other.ID != "" {
		return t.ID == other.ID && t.URL == other.URL
	}
	return t.URL == other.URL
}

// DisplayTitle returns the title, falling back to the media URL.
func (t *Track) DisplayTitle() string {
	if t == nil {
		return ""
	}
	if t.Title != "" {
		return t.Title
	}
	return t.URL
}
