package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/core"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/logging"
)

const maxBodySize = 1 << 20

// Protocol selects the room service's wire format.
type Protocol string

const (
	// ProtocolSongList polls /api/songListInfo and advances with
	// /api/nextSong, keyed by the list hash.
	ProtocolSongList Protocol = "songlist"
	// ProtocolRevision uses /api/rooms/{id}/state and /api/rooms/{id}/next
	// with an explicit revision.
	ProtocolRevision Protocol = "revision"
)

// ParseProtocol maps a config value to a Protocol; empty means songlist.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProtocolSongList:
		return ProtocolSongList, nil
	case ProtocolRevision:
		return ProtocolRevision, nil
	default:
		return "", fmt.Errorf("unknown room protocol %q", s)
	}
}

// Client is an HTTP client for one room.
type Client struct {
	addr       Address
	protocol   Protocol
	httpClient *http.Client
	log        *zap.Logger

	// songlist state
	mu        sync.Mutex
	hash      string
	revision  uint64
	listState core.RoomState
}

// NewClient creates a client for the room at addr.
func NewClient(addr Address, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		addr:       addr,
		protocol:   ProtocolSongList,
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.OrNop(log).Named("room"),
		listState:  core.RoomState{Intent: core.IntentPlaying, Queue: []core.Track{}},
	}
}

// SetProtocol switches the wire format. Call before the first Fetch.
func (c *Client) SetProtocol(p Protocol) {
	c.protocol = p
}

// Address returns the room this client talks to.
func (c *Client) Address() Address {
	return c.addr
}

type wireTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	DurationMs int64  `json:"durationMs"`
}

func (w wireTrack) track() core.Track {
	return core.Track{
		ID:       w.ID,
		Title:    w.Title,
		URL:      w.URL,
		Duration: time.Duration(w.DurationMs) * time.Millisecond,
	}
}

type stateResponse struct {
	Revision       uint64      `json:"revision"`
	PlaybackIntent string      `json:"playbackIntent"`
	CurrentTrack   *wireTrack  `json:"currentTrack"`
	Queue          []wireTrack `json:"queue"`
}

type advanceRequest struct {
	Revision uint64 `json:"revision"`
}

type advanceResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Fetch reads the room's current state.
func (c *Client) Fetch(ctx context.Context) (core.RoomState, error) {
	if c.protocol == ProtocolSongList {
		return c.fetchSongList(ctx)
	}

	var resp stateResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("state"), nil, &resp); err != nil {
		return core.RoomState{}, fmt.Errorf("%w: %w", apperr.ErrPollFailure, err)
	}

	state := core.RoomState{
		Revision: resp.Revision,
		Intent:   core.IntentPlaying,
		Queue:    make([]core.Track, 0, len(resp.Queue)),
	}
	if strings.EqualFold(resp.PlaybackIntent, string(core.IntentPaused)) {
		state.Intent = core.IntentPaused
	}
	if resp.CurrentTrack != nil && resp.CurrentTrack.URL != "" {
		t := resp.CurrentTrack.track()
		state.Current = &t
	}
	for _, w := range resp.Queue {
		state.Queue = append(state.Queue, w.track())
	}
	return state, nil
}

// Advance asks the room to move past the track current at fromRevision.
// The service rejects the request when the room has already moved on.
func (c *Client) Advance(ctx context.Context, fromRevision uint64) error {
	if c.protocol == ProtocolSongList {
		return c.advanceSongList(ctx, fromRevision)
	}

	body, err := json.Marshal(advanceRequest{Revision: fromRevision})
	if err != nil {
		return fmt.Errorf("encode advance: %w", err)
	}

	var resp advanceResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("next"), body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return fmt.Errorf("%w: %w", apperr.ErrAdvanceRejected, err)
		}
		return fmt.Errorf("advance: %w: %w", apperr.ErrPollFailure, err)
	}
	if resp.Success != nil && !*resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "service refused"
		}
		return fmt.Errorf("%w: %s", apperr.ErrAdvanceRejected, msg)
	}

	c.log.Debug("advance accepted", zap.Uint64("revision", fromRevision))
	return nil
}

func (c *Client) endpoint(action string) string {
	return c.addr.BaseURL + "/api/rooms/" + url.PathEscape(c.addr.ID) + "/" + action
}

// statusError is a non-2xx reply.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

// do performs a JSON request and decodes a non-empty reply into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
