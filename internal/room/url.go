// Package room talks to the remote KTV room service: it reads the room's
// playback state and asks it to advance the queue.
package room

import (
	"fmt"
	"net/url"
	"strings"

	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

// Address identifies a room on a service.
type Address struct {
	BaseURL string // scheme://host[:port]
	ID      string
}

// String returns the room link.
func (a Address) String() string {
	return a.BaseURL + "/" + url.PathEscape(a.ID)
}

// ParseRoomURL splits https://host[:port]/<roomId> into base URL and room id.
// The id is the last non-empty path segment.
func ParseRoomURL(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, fmt.Errorf("%w: empty", apperr.ErrInvalidRoomURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", apperr.ErrInvalidRoomURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Address{}, fmt.Errorf("%w: scheme must be http or https", apperr.ErrInvalidRoomURL)
	}
	if u.Host == "" {
		return Address{}, fmt.Errorf("%w: missing host", apperr.ErrInvalidRoomURL)
	}

	var id string
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			id = segments[i]
			break
		}
	}
	if id == "" {
		return Address{}, fmt.Errorf("%w: missing room id in %q", apperr.ErrInvalidRoomURL, raw)
	}

	return Address{
		BaseURL: u.Scheme + "://" + u.Host,
		ID:      id,
	}, nil
}

// websocketURL returns the notification endpoint for the room.
func (a Address) websocketURL(nickname string) string {
	base := a.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	q := url.Values{}
	q.Set("roomId", a.ID)
	if nickname != "" {
		q.Set("nickname", nickname)
	}
	return base + "/api/ws?" + q.Encode()
}
