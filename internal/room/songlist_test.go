package room

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

// songListServer answers songListInfo with the given replies in order,
// repeating the last one, and records the lastHash of each request.
func songListServer(t *testing.T, replies ...string) (*Client, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		hashes []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/songListInfo" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("roomId"); got != "102" {
			t.Errorf("roomId = %q, want 102", got)
		}
		mu.Lock()
		hashes = append(hashes, r.URL.Query().Get("lastHash"))
		i := len(hashes) - 1
		mu.Unlock()
		if i >= len(replies) {
			i = len(replies) - 1
		}
		io.WriteString(w, replies[i])
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Address{BaseURL: srv.URL, ID: "102"}, time.Second, nil)
	return c, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), hashes...)
	}
}

func TestSongListFetch(t *testing.T) {
	c, hashes := songListServer(t,
		`{"hash": "h1", "changed": true, "list": {"singing": {"url": "http://media/1.mp4", "title": "First"}, "sung": []}}`,
		`{"hash": "h1", "changed": false}`,
		`{"hash": "h2", "changed": true, "list": {"singing": {"url": "http://media/2.mp4"}, "sung": [{"url": "http://media/1.mp4"}]}}`,
	)
	ctx := context.Background()

	first, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if first.Revision != 1 || first.Current == nil || first.Current.URL != "http://media/1.mp4" {
		t.Fatalf("first state = %+v", first)
	}
	if first.Current.ID != "http://media/1.mp4" || first.Current.Title != "First" {
		t.Errorf("first track = %+v", first.Current)
	}
	if first.Paused() {
		t.Error("songlist rooms are always playing")
	}

	same, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if same.Revision != 1 || same.Current == nil || same.Current.URL != "http://media/1.mp4" {
		t.Errorf("unchanged state = %+v, want revision 1 with the same track", same)
	}

	next, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if next.Revision != 2 || next.Current == nil || next.Current.URL != "http://media/2.mp4" {
		t.Errorf("changed state = %+v, want revision 2 with track 2", next)
	}

	want := []string{emptyListHash, "h1", "h1"}
	got := hashes()
	if len(got) != len(want) {
		t.Fatalf("lastHash sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("lastHash[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSongListCurrentTrack(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantURL string
	}{
		{"singing", `{"hash": "a", "changed": true, "list": {"singing": {"url": "http://media/s.mp4"}, "sung": [{"url": "http://media/old.mp4"}]}}`, "http://media/s.mp4"},
		{"falls back to last sung", `{"hash": "a", "changed": true, "list": {"singing": null, "sung": [{"url": "http://media/1.mp4"}, {"url": "http://media/2.mp4"}]}}`, "http://media/2.mp4"},
		{"empty room", `{"hash": "a", "changed": true, "list": {"sung": []}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := songListServer(t, tt.reply)
			state, err := c.Fetch(context.Background())
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if tt.wantURL == "" {
				if state.HasTrack() {
					t.Errorf("Current = %+v, want none", state.Current)
				}
				return
			}
			if state.Current == nil || state.Current.URL != tt.wantURL {
				t.Errorf("Current = %+v, want %s", state.Current, tt.wantURL)
			}
		})
	}
}

func TestSongListAdvance(t *testing.T) {
	bodies := make(chan nextSongRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/songListInfo":
			io.WriteString(w, `{"hash": "h7", "changed": true, "list": {"singing": {"url": "http://media/1.mp4"}}}`)
		case "/api/nextSong":
			if r.Method != http.MethodPost || r.URL.Query().Get("roomId") != "102" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL)
			}
			var body nextSongRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			bodies <- body
			io.WriteString(w, `{"success": true}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(Address{BaseURL: srv.URL, ID: "102"}, time.Second, nil)
	state, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if err := c.Advance(context.Background(), state.Revision); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if body := <-bodies; body.IDArrayHash != "h7" {
		t.Errorf("idArrayHash = %q, want h7", body.IDArrayHash)
	}
}

func TestSongListAdvanceRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"success false", http.StatusOK, `{"success": false, "message": "list changed"}`},
		{"success missing", http.StatusOK, `{}`},
		{"conflict", http.StatusConflict, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashes := make(chan string, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req nextSongRequest
				json.NewDecoder(r.Body).Decode(&req)
				hashes <- req.IDArrayHash
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(Address{BaseURL: srv.URL, ID: "102"}, time.Second, nil)
			if err := c.Advance(context.Background(), 0); !errors.Is(err, apperr.ErrAdvanceRejected) {
				t.Errorf("Advance() error = %v, want ErrAdvanceRejected", err)
			}
			if hash := <-hashes; hash != emptyListHash {
				t.Errorf("idArrayHash = %q, want %s before any fetch", hash, emptyListHash)
			}
		})
	}
}

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    Protocol
		wantErr bool
	}{
		{"", ProtocolSongList, false},
		{"songlist", ProtocolSongList, false},
		{" Revision ", ProtocolRevision, false},
		{"grpc", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProtocol(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProtocol(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProtocol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
