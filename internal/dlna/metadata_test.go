package dlna

import (
	"strings"
	"testing"
	"time"

	"github.com/aspromise/ktv-casting/internal/core"
)

func TestBuildMetadata(t *testing.T) {
	got, err := BuildMetadata(core.Track{
		ID:       "7",
		Title:    "Song <Live>",
		URL:      "http://media/x.mp4",
		Duration: 4*time.Minute + 5*time.Second,
	})
	if err != nil {
		t.Fatalf("BuildMetadata() error = %v", err)
	}

	for _, want := range []string{
		`<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"`,
		`<item id="7" parentID="-1" restricted="1">`,
		`<dc:title>Song &lt;Live&gt;</dc:title>`,
		`<upnp:class>object.item.videoItem</upnp:class>`,
		`<res protocolInfo="http-get:*:video/mp4:*" duration="0:04:05">http://media/x.mp4</res>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildMetadata() missing %q in %s", want, got)
		}
	}
}

func TestBuildMetadataUntitled(t *testing.T) {
	got, err := BuildMetadata(core.Track{URL: "http://media/y.mp4"})
	if err != nil {
		t.Fatalf("BuildMetadata() error = %v", err)
	}
	if !strings.Contains(got, "<dc:title>http://media/y.mp4</dc:title>") {
		t.Errorf("title should fall back to URL: %s", got)
	}
	if strings.Contains(got, "duration=") {
		t.Errorf("unknown duration should be omitted: %s", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"0:03:21", 3*time.Minute + 21*time.Second, true},
		{"01:00:00", time.Hour, true},
		{"0:00:01.250", 1250 * time.Millisecond, true},
		{"0:00:00", 0, false},
		{"NOT_IMPLEMENTED", 0, false},
		{"", 0, false},
		{"garbage", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDuration(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseDuration(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMetadataTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"prefixed", `<DIDL-Lite><item><dc:title>A</dc:title></item></DIDL-Lite>`, "A"},
		{"escaped", `&lt;DIDL-Lite&gt;&lt;item&gt;&lt;dc:title&gt;B&lt;/dc:title&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;`, "B"},
		{"not implemented", "NOT_IMPLEMENTED", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := metadataTitle(tt.in); got != tt.want {
				t.Errorf("metadataTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
