package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-5 * time.Second, "0:00"},
		{65 * time.Second, "1:05"},
		{4*time.Minute + 59*time.Second + 900*time.Millisecond, "4:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		current, total time.Duration
		want           string
	}{
		{0, 0, "──────────"},
		{0, time.Minute, "──────────"},
		{30 * time.Second, time.Minute, "━━━━━─────"},
		{2 * time.Minute, time.Minute, "━━━━━━━━━━"},
	}

	for _, tt := range tests {
		if got := FormatProgress(tt.current, tt.total, 10); got != tt.want {
			t.Errorf("FormatProgress(%v, %v) = %q, want %q", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer title", 10, "a longe..."},
		{"abcdef", 2, "ab"},
		{"月亮代表我的心", 5, "月亮..."},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableWriter(&buf, "NAME", "HOST")
	tbl.Row("Living Room TV", "192.168.1.20:8080")
	tbl.Row("Box", "10.0.0.9:49152")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	// Columns are aligned on the widest cell plus padding.
	if !strings.HasPrefix(lines[0], "NAME            HOST") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "Box             10.0.0.9") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestAdjustVolume(t *testing.T) {
	tests := []struct {
		name           string
		current, level int
		set, up, down  bool
		want           int
	}{
		{"show", 40, 0, false, false, false, 40},
		{"set", 40, 75, true, false, false, 75},
		{"set zero", 40, 0, true, false, false, 0},
		{"up", 40, 0, false, true, false, 50},
		{"up clamps", 95, 0, false, true, false, 100},
		{"down", 40, 0, false, false, true, 30},
		{"down clamps", 5, 0, false, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adjustVolume(tt.current, tt.level, tt.set, tt.up, tt.down)
			if got != tt.want {
				t.Errorf("adjustVolume() = %d, want %d", got, tt.want)
			}
		})
	}
}
