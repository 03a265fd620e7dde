package dlna

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

// ssdpResponder answers every datagram with one reply per location.
func ssdpResponder(t *testing.T, locations ...string) string {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if !strings.HasPrefix(string(buf[:n]), "M-SEARCH") {
				continue
			}
			for _, loc := range locations {
				reply := "HTTP/1.1 200 OK\r\n" +
					"CACHE-CONTROL: max-age=1800\r\n" +
					"LOCATION: " + loc + "\r\n" +
					"ST: urn:schemas-upnp-org:service:AVTransport:1\r\n" +
					"USN: uuid:1234-abcd::urn:schemas-upnp-org:service:AVTransport:1\r\n" +
					"\r\n"
				conn.WriteToUDP([]byte(reply), from)
			}
		}
	}()

	return conn.LocalAddr().String()
}

func descriptorServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/desc.xml":
			io.WriteString(w, tvDescriptor)
		case "/server.xml":
			io.WriteString(w, `<root><device><deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType><UDN>uuid:srv</UDN></device></root>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscover(t *testing.T) {
	srv := descriptorServer(t)

	d := NewDiscovery(nil)
	d.addr = ssdpResponder(t,
		srv.URL+"/desc.xml",
		srv.URL+"/server.xml",
		srv.URL+"/missing.xml",
	)

	res, err := d.Scan(context.Background(), 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(res.Data) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(res.Data))
	}
	if res.Data[0].Name != "Living Room TV" {
		t.Errorf("Name = %q", res.Data[0].Name)
	}
	if res.Data[0].Location != srv.URL+"/desc.xml" {
		t.Errorf("Location = %q", res.Data[0].Location)
	}
	if len(res.Errors) != 2 {
		t.Errorf("skipped = %d, want 2: %s", len(res.Errors), res.ErrorSummary())
	}
}

func TestDiscoverNoResponses(t *testing.T) {
	silent, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer silent.Close()

	d := NewDiscovery(nil)
	d.addr = silent.LocalAddr().String()

	devices, err := d.Discover(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Discover() error = %v, want nil", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("Discover() = %v, want empty list", devices)
	}
}

func TestDiscoverCancelled(t *testing.T) {
	silent, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer silent.Close()

	d := NewDiscovery(nil)
	d.addr = silent.LocalAddr().String()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = d.Discover(ctx, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Discover() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Discover() did not stop on cancellation")
	}
}

func TestLocate(t *testing.T) {
	srv := descriptorServer(t)

	d := NewDiscovery(nil)
	d.addr = ssdpResponder(t, srv.URL+"/desc.xml")

	dev, err := d.Locate(context.Background(), "1234-abcd", 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if dev.ID != "1234-abcd" {
		t.Errorf("ID = %q", dev.ID)
	}

	_, err = d.Locate(context.Background(), "other", 300*time.Millisecond)
	if !errors.Is(err, apperr.ErrDeviceNotFound) {
		t.Errorf("Locate() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestFromLocation(t *testing.T) {
	srv := descriptorServer(t)
	d := NewDiscovery(nil)

	dev, err := d.FromLocation(context.Background(), srv.URL+"/desc.xml")
	if err != nil {
		t.Fatalf("FromLocation() error = %v", err)
	}
	if !strings.HasPrefix(dev.Services[0].ControlURL, srv.URL) {
		t.Errorf("ControlURL = %q, want prefix %q", dev.Services[0].ControlURL, srv.URL)
	}

	if _, err := d.FromLocation(context.Background(), srv.URL+"/missing.xml"); err == nil {
		t.Error("FromLocation() error = nil for missing descriptor")
	}
}

func TestSearchMX(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    int
	}{
		{100 * time.Millisecond, 1},
		{3 * time.Second, 3},
		{30 * time.Second, 5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.timeout), func(t *testing.T) {
			if got := searchMX(tt.timeout); got != tt.want {
				t.Errorf("searchMX(%v) = %d, want %d", tt.timeout, got, tt.want)
			}
		})
	}
}
