package dlna

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aspromise/ktv-casting/internal/core"
)

// deviceDescription is the UPnP root device document.
type deviceDescription struct {
	URLBase string     `xml:"URLBase"`
	Device  descDevice `xml:"device"`
}

type descDevice struct {
	DeviceType   string        `xml:"deviceType"`
	FriendlyName string        `xml:"friendlyName"`
	ModelName    string        `xml:"modelName"`
	UDN          string        `xml:"UDN"`
	Services     []descService `xml:"serviceList>service"`
	Devices      []descDevice  `xml:"deviceList>device"`
}

type descService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
}

var errNoRenderer = errors.New("no renderer in descriptor")

// fetchDescription downloads and parses the descriptor at location.
func fetchDescription(ctx context.Context, client *http.Client, location string) (core.Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return core.Device{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return core.Device{}, fmt.Errorf("fetch descriptor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Device{}, fmt.Errorf("fetch descriptor: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return core.Device{}, fmt.Errorf("read descriptor: %w", err)
	}

	return parseDescription(data, location)
}

// parseDescription extracts the renderer node of a descriptor.
func parseDescription(data []byte, location string) (core.Device, error) {
	var desc deviceDescription
	if err := xml.Unmarshal(data, &desc); err != nil {
		return core.Device{}, fmt.Errorf("parse descriptor: %w", err)
	}

	base := strings.TrimSpace(desc.URLBase)
	if base == "" {
		base = location
	}

	node, ok := findRenderer(desc.Device)
	if !ok {
		return core.Device{}, errNoRenderer
	}

	udn := strings.TrimSpace(node.UDN)
	if udn == "" {
		return core.Device{}, errors.New("descriptor has no UDN")
	}

	dev := core.Device{
		ID:       strings.TrimPrefix(udn, "uuid:"),
		Name:     strings.TrimSpace(node.FriendlyName),
		Model:    strings.TrimSpace(node.ModelName),
		Type:     strings.TrimSpace(node.DeviceType),
		Location: location,
	}
	if dev.Name == "" {
		dev.Name = dev.ID
	}

	for _, s := range node.Services {
		if s.ServiceType == "" || s.ControlURL == "" {
			continue
		}
		controlURL, err := resolveControlURL(base, s.ControlURL)
		if err != nil {
			continue
		}
		dev.Services = append(dev.Services, core.Service{
			Type:       strings.TrimSpace(s.ServiceType),
			ID:         strings.TrimSpace(s.ServiceID),
			ControlURL: controlURL,
		})
	}

	if !dev.Supports(core.AVTransportURN) {
		return core.Device{}, fmt.Errorf("%s: no AVTransport control endpoint", dev.Name)
	}

	return dev, nil
}

// findRenderer walks the device tree for the node exposing AVTransport.
func findRenderer(d descDevice) (descDevice, bool) {
	for _, s := range d.Services {
		if strings.EqualFold(strings.TrimSpace(s.ServiceType), core.AVTransportURN) {
			return d, true
		}
	}
	for _, child := range d.Devices {
		if found, ok := findRenderer(child); ok {
			return found, true
		}
	}
	if strings.Contains(d.DeviceType, "MediaRenderer") {
		return d, true
	}
	return descDevice{}, false
}

// resolveControlURL makes controlURL absolute. Some renderers publish paths
// without a leading slash which are served from the root anyway.
func resolveControlURL(base, controlURL string) (string, error) {
	p := strings.TrimSpace(controlURL)
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p, nil
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("parse control url: %w", err)
	}
	return b.ResolveReference(ref).String(), nil
}
