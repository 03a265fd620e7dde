package core

import (
	"net/url"
	"strings"
)

// UPnP service and device URNs used by renderers.
const (
	AVTransportURN       = "urn:schemas-upnp-org:service:AVTransport:1"
	RenderingControlURN  = "urn:schemas-upnp-org:service:RenderingControl:1"
	ConnectionManagerURN = "urn:schemas-upnp-org:service:ConnectionManager:1"
	MediaRendererURN     = "urn:schemas-upnp-org:device:MediaRenderer:1"
)

// Service is a control endpoint published by a device.
type Service struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	ControlURL string `json:"control_url"`
}

// Device represents a discovered renderer.
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Model    string    `json:"model"`
	Type     string    `json:"type"`
	Location string    `json:"location"`
	Services []Service `json:"services"`
}

// Service returns the first service matching the given URN.
func (d Device) Service(urn string) (Service, bool) {
	for _, s := range d.Services {
		if strings.EqualFold(s.Type, urn) {
			return s, true
		}
	}
	return Service{}, false
}

// Supports reports whether the device publishes the given service.
func (d Device) Supports(urn string) bool {
	_, ok := d.Service(urn)
	return ok
}

// IsRenderer reports whether the device can be driven as a playback renderer.
func (d Device) IsRenderer() bool {
	return strings.Contains(d.Type, "MediaRenderer") || d.Supports(AVTransportURN)
}

// Host returns the host:port of the descriptor location.
func (d Device) Host() string {
	u, err := url.Parse(d.Location)
	if err != nil {
		return ""
	}
	return u.Host
}

// Capabilities lists the short names of the services the device declares.
func (d Device) Capabilities() []string {
	caps := make([]string, 0, len(d.Services))
	for _, s := range d.Services {
		caps = append(caps, ServiceName(s.Type))
	}
	return caps
}

// ServiceName extracts "AVTransport" from "urn:schemas-upnp-org:service:AVTransport:1".
func ServiceName(urn string) string {
	parts := strings.Split(urn, ":")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return urn
}
