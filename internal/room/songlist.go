package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/core"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

// emptyListHash is what the service expects before any list has been seen.
const emptyListHash = "EMPTY_LIST_HASH"

// songListEntry is one song of the room's list.
type songListEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (e *songListEntry) track() *core.Track {
	if e == nil || e.URL == "" {
		return nil
	}
	id := e.ID
	if id == "" {
		id = e.URL
	}
	return &core.Track{ID: id, Title: e.Title, URL: e.URL}
}

type songListResponse struct {
	Hash    string `json:"hash"`
	Changed bool   `json:"changed"`
	List    struct {
		Singing *songListEntry  `json:"singing"`
		Sung    []songListEntry `json:"sung"`
	} `json:"list"`
}

type nextSongRequest struct {
	IDArrayHash string `json:"idArrayHash"`
}

// fetchSongList reads /api/songListInfo. The service only returns the list
// when it differs from lastHash, so each new hash bumps a local revision
// and an unchanged reply repeats the previous state.
func (c *Client) fetchSongList(ctx context.Context) (core.RoomState, error) {
	c.mu.Lock()
	lastHash := c.hash
	c.mu.Unlock()
	if lastHash == "" {
		lastHash = emptyListHash
	}

	q := url.Values{}
	q.Set("roomId", c.addr.ID)
	q.Set("lastHash", lastHash)

	var resp songListResponse
	if err := c.do(ctx, http.MethodGet, c.addr.BaseURL+"/api/songListInfo?"+q.Encode(), nil, &resp); err != nil {
		return core.RoomState{}, fmt.Errorf("%w: %w", apperr.ErrPollFailure, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !resp.Changed {
		if resp.Hash != "" && c.hash == "" {
			c.hash = resp.Hash
		}
		return c.listState, nil
	}

	hash := resp.Hash
	if hash == "" {
		hash = lastHash
	}
	c.hash = hash
	c.revision++

	state := core.RoomState{
		Revision: c.revision,
		Intent:   core.IntentPlaying,
		Queue:    []core.Track{},
	}
	// Nothing singing: the last sung song stays current.
	if t := resp.List.Singing.track(); t != nil {
		state.Current = t
	} else if n := len(resp.List.Sung); n > 0 {
		state.Current = resp.List.Sung[n-1].track()
	}
	c.listState = state

	c.log.Debug("song list changed",
		zap.String("hash", hash),
		zap.Uint64("revision", c.revision),
		zap.String("track", state.Current.DisplayTitle()),
	)
	return state, nil
}

// advanceSongList posts /api/nextSong with the hash of the list the
// caller acted on, so the service can refuse a stale request.
func (c *Client) advanceSongList(ctx context.Context, fromRevision uint64) error {
	c.mu.Lock()
	hash := c.hash
	c.mu.Unlock()
	if hash == "" {
		hash = emptyListHash
	}

	body, err := json.Marshal(nextSongRequest{IDArrayHash: hash})
	if err != nil {
		return fmt.Errorf("encode advance: %w", err)
	}

	q := url.Values{}
	q.Set("roomId", c.addr.ID)

	var resp advanceResponse
	if err := c.do(ctx, http.MethodPost, c.addr.BaseURL+"/api/nextSong?"+q.Encode(), body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return fmt.Errorf("%w: %w", apperr.ErrAdvanceRejected, err)
		}
		return fmt.Errorf("advance: %w: %w", apperr.ErrPollFailure, err)
	}
	// A reply without success is a refusal.
	if resp.Success == nil || !*resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "service refused"
		}
		return fmt.Errorf("%w: %s", apperr.ErrAdvanceRejected, msg)
	}

	c.log.Debug("advance accepted", zap.String("hash", hash), zap.Uint64("revision", fromRevision))
	return nil
}
