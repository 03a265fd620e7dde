package dlna

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aspromise/ktv-casting/internal/core"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/logging"
)

const (
	ssdpAddr         = "239.255.255.250:1900"
	defaultTimeout   = 3 * time.Second
	descriptorFetchN = 8
)

// Discovery finds renderers on the local network via SSDP.
type Discovery struct {
	addr       string
	httpClient *http.Client
	log        *zap.Logger
}

// NewDiscovery creates a new Discovery instance.
func NewDiscovery(log *zap.Logger) *Discovery {
	return &Discovery{
		addr:       ssdpAddr,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        logging.OrNop(log).Named("discovery"),
	}
}

// mSearchRequest builds the search datagram. MX is the number of seconds
// devices may wait before answering.
func mSearchRequest(mx int) []byte {
	return []byte(
		"M-SEARCH * HTTP/1.1\r\n" +
			"HOST: " + ssdpAddr + "\r\n" +
			"MAN: \"ssdp:discover\"\r\n" +
			fmt.Sprintf("MX: %d\r\n", mx) +
			"ST: " + core.AVTransportURN + "\r\n" +
			"\r\n",
	)
}

// searchMX clamps the MX header to 1..5 seconds.
func searchMX(timeout time.Duration) int {
	mx := int(timeout / time.Second)
	if mx < 1 {
		return 1
	}
	if mx > 5 {
		return 5
	}
	return mx
}

// Discover returns every renderer that answered within timeout. Finding
// nothing is not an error.
func (d *Discovery) Discover(ctx context.Context, timeout time.Duration) ([]core.Device, error) {
	res, err := d.Scan(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Scan is Discover with the per-descriptor failures that were skipped.
func (d *Discovery) Scan(ctx context.Context, timeout time.Duration) (*apperr.PartialResult[[]core.Device], error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	locations, err := d.search(ctx, timeout)
	if err != nil {
		return nil, err
	}
	d.log.Debug("ssdp search complete", zap.Int("responses", len(locations)))

	return d.describe(ctx, locations), nil
}

// Locate re-runs discovery and returns the device with the given ID.
func (d *Discovery) Locate(ctx context.Context, id string, timeout time.Duration) (core.Device, error) {
	devices, err := d.Discover(ctx, timeout)
	if err != nil {
		return core.Device{}, err
	}
	for _, dev := range devices {
		if dev.ID == id {
			return dev, nil
		}
	}
	return core.Device{}, fmt.Errorf("%w: %s", apperr.ErrDeviceNotFound, id)
}

// FromLocation builds a device straight from its descriptor URL.
func (d *Discovery) FromLocation(ctx context.Context, location string) (core.Device, error) {
	dev, err := fetchDescription(ctx, d.httpClient, location)
	if err != nil {
		return core.Device{}, fmt.Errorf("%s: %w", location, err)
	}
	return dev, nil
}

// search multicasts M-SEARCH and collects unique LOCATION headers.
func (d *Discovery) search(ctx context.Context, timeout time.Duration) ([]string, error) {
	addr, err := net.ResolveUDPAddr("udp4", d.addr)
	if err != nil {
		return nil, fmt.Errorf("resolve ssdp addr: %w", err)
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	// Sent twice; UDP gives no delivery guarantee.
	req := mSearchRequest(searchMX(timeout))
	for i := 0; i < 2; i++ {
		if _, err := conn.WriteToUDP(req, addr); err != nil {
			return nil, fmt.Errorf("send m-search: %w", err)
		}
	}

	var locations []string
	seen := make(map[string]bool)
	buf := make([]byte, 2048)

	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			continue
		}

		location, ok := parseResponse(buf[:n])
		if !ok {
			d.log.Debug("ignoring ssdp reply", zap.Stringer("from", remote))
			continue
		}
		if seen[location] {
			continue
		}
		seen[location] = true
		locations = append(locations, location)
	}

	return locations, nil
}

// describe fetches descriptors concurrently and keeps the renderers.
func (d *Discovery) describe(ctx context.Context, locations []string) *apperr.PartialResult[[]core.Device] {
	res := &apperr.PartialResult[[]core.Device]{Data: []core.Device{}}
	found := make([]*core.Device, len(locations))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(descriptorFetchN)

	for i, loc := range locations {
		g.Go(func() error {
			dev, err := fetchDescription(gctx, d.httpClient, loc)
			if err != nil {
				d.log.Debug("skipping descriptor", zap.String("location", loc), zap.Error(err))
				mu.Lock()
				res.AddError(fmt.Errorf("%s: %w", loc, err))
				mu.Unlock()
				return nil
			}
			found[i] = &dev
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	for _, dev := range found {
		if dev == nil || seen[dev.ID] {
			continue
		}
		seen[dev.ID] = true
		res.Data = append(res.Data, *dev)
	}
	sort.Slice(res.Data, func(i, j int) bool {
		return strings.ToLower(res.Data[i].Name) < strings.ToLower(res.Data[j].Name)
	})

	return res
}

// parseResponse extracts LOCATION from an SSDP reply.
func parseResponse(data []byte) (string, bool) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return "", false
	}
	return location, true
}
