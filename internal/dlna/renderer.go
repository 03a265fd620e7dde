package dlna

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aspromise/ktv-casting/internal/core"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/logging"
)

const (
	defaultRetries     = 3
	defaultBackoffBase = 500 * time.Millisecond
	defaultCallTimeout = 5 * time.Second
)

// RendererOptions configures a Renderer.
type RendererOptions struct {
	CallTimeout time.Duration
	Retries     int
	BackoffBase time.Duration
	Logger      *zap.Logger
}

// Renderer controls playback on one device.
type Renderer struct {
	soap        *SOAPClient
	callTimeout time.Duration
	retries     int
	backoffBase time.Duration
	log         *zap.Logger

	mu     sync.RWMutex
	device core.Device
}

// NewRenderer binds a Renderer to device's control endpoints.
func NewRenderer(device core.Device, opts RendererOptions) *Renderer {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	return &Renderer{
		soap:        NewSOAPClient(opts.CallTimeout),
		callTimeout: opts.CallTimeout,
		retries:     opts.Retries,
		backoffBase: opts.BackoffBase,
		log:         logging.OrNop(opts.Logger).Named("renderer"),
		device:      device,
	}
}

// Device returns the device currently bound.
func (r *Renderer) Device() core.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.device
}

// Rebind switches to the endpoints of a rediscovered device.
func (r *Renderer) Rebind(device core.Device) {
	r.mu.Lock()
	r.device = device
	r.mu.Unlock()
	r.log.Info("renderer rebound", zap.String("device", device.Name), zap.String("location", device.Location))
}

// SetTrack loads track into the renderer without starting playback.
func (r *Renderer) SetTrack(ctx context.Context, track core.Track) error {
	metadata, err := BuildMetadata(track)
	if err != nil {
		return err
	}
	_, err = r.invoke(ctx, core.AVTransportURN, "SetAVTransportURI", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "CurrentURI", Value: track.URL},
		{Name: "CurrentURIMetaData", Value: metadata},
	})
	return err
}

// Play starts or resumes playback.
func (r *Renderer) Play(ctx context.Context) error {
	_, err := r.invoke(ctx, core.AVTransportURN, "Play", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Speed", Value: "1"},
	})
	return err
}

// Pause pauses playback.
func (r *Renderer) Pause(ctx context.Context) error {
	_, err := r.invoke(ctx, core.AVTransportURN, "Pause", []Arg{{Name: "InstanceID", Value: "0"}})
	return err
}

// Stop stops playback.
func (r *Renderer) Stop(ctx context.Context) error {
	_, err := r.invoke(ctx, core.AVTransportURN, "Stop", []Arg{{Name: "InstanceID", Value: "0"}})
	return err
}

// transportInfo is the GetTransportInfo response.
type transportInfo struct {
	CurrentTransportState  string `xml:"CurrentTransportState"`
	CurrentTransportStatus string `xml:"CurrentTransportStatus"`
	CurrentSpeed           string `xml:"CurrentSpeed"`
}

// positionInfo is the GetPositionInfo response.
type positionInfo struct {
	Track         int    `xml:"Track"`
	TrackDuration string `xml:"TrackDuration"`
	TrackMetaData string `xml:"TrackMetaData"`
	TrackURI      string `xml:"TrackURI"`
	RelTime       string `xml:"RelTime"`
	AbsTime       string `xml:"AbsTime"`
}

// MediaInfo contains current media information.
type MediaInfo struct {
	NrTracks           int    `xml:"NrTracks" json:"tracks"`
	MediaDuration      string `xml:"MediaDuration" json:"media_duration"`
	CurrentURI         string `xml:"CurrentURI" json:"current_uri"`
	CurrentURIMetaData string `xml:"CurrentURIMetaData" json:"-"`
}

// Title returns the title from the media metadata, if any.
func (m MediaInfo) Title() string {
	return metadataTitle(m.CurrentURIMetaData)
}

// Status reads the transport state and position in one observation.
func (r *Renderer) Status(ctx context.Context) (core.TransportStatus, error) {
	var (
		info    transportInfo
		pos     positionInfo
		posErr  error
		instArg = []Arg{{Name: "InstanceID", Value: "0"}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := r.invoke(gctx, core.AVTransportURN, "GetTransportInfo", instArg)
		if err != nil {
			return err
		}
		return decodeResponse(resp, "GetTransportInfoResponse", &info)
	})
	g.Go(func() error {
		resp, err := r.invoke(gctx, core.AVTransportURN, "GetPositionInfo", instArg)
		if err == nil {
			err = decodeResponse(resp, "GetPositionInfoResponse", &pos)
		}
		// Position is optional; some renderers fault on it while idle.
		if err != nil && apperr.IsControlError(err) {
			posErr = err
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return core.TransportStatus{}, err
	}
	if posErr != nil {
		r.log.Debug("position unavailable", zap.Error(posErr))
	}

	status := core.TransportStatus{
		State:      core.ParseTransportState(info.CurrentTransportState),
		TrackURI:   pos.TrackURI,
		TrackTitle: metadataTitle(pos.TrackMetaData),
		ObservedAt: time.Now(),
	}
	if d, ok := parseDuration(pos.RelTime); ok {
		status.Position = d
	}
	if d, ok := parseDuration(pos.TrackDuration); ok {
		status.Duration = d
	}
	return status, nil
}

// MediaInfo retrieves current media information.
func (r *Renderer) MediaInfo(ctx context.Context) (MediaInfo, error) {
	resp, err := r.invoke(ctx, core.AVTransportURN, "GetMediaInfo", []Arg{{Name: "InstanceID", Value: "0"}})
	if err != nil {
		return MediaInfo{}, err
	}
	var info MediaInfo
	if err := decodeResponse(resp, "GetMediaInfoResponse", &info); err != nil {
		return MediaInfo{}, err
	}
	return info, nil
}

// Volume returns the master volume (0-100).
func (r *Renderer) Volume(ctx context.Context) (int, error) {
	resp, err := r.invoke(ctx, core.RenderingControlURN, "GetVolume", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
	})
	if err != nil {
		return 0, err
	}

	var out struct {
		CurrentVolume string `xml:"CurrentVolume"`
	}
	if err := decodeResponse(resp, "GetVolumeResponse", &out); err != nil {
		return 0, err
	}
	vol, err := strconv.Atoi(out.CurrentVolume)
	if err != nil {
		return 0, &apperr.ControlError{Action: "GetVolume", Description: fmt.Sprintf("bad volume %q", out.CurrentVolume)}
	}
	return vol, nil
}

// SetVolume sets the master volume, clamped to 0-100.
func (r *Renderer) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	_, err := r.invoke(ctx, core.RenderingControlURN, "SetVolume", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: strconv.Itoa(volume)},
	})
	return err
}

// invoke calls action with retries. Device faults are returned at once;
// transport failures are retried with exponential backoff.
func (r *Renderer) invoke(ctx context.Context, service, action string, args []Arg) ([]byte, error) {
	dev := r.Device()
	svc, ok := dev.Service(service)
	if !ok {
		return nil, &apperr.ControlError{
			Action:      action,
			Description: fmt.Sprintf("%s does not publish %s", dev.Name, core.ServiceName(service)),
		}
	}

	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			backoff := r.backoffBase * time.Duration(1<<(attempt-1))
			r.log.Debug("retrying action",
				zap.String("action", action),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		resp, err := r.soap.Call(callCtx, svc.ControlURL, service, action, args)
		cancel()
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if apperr.IsControlError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", action, r.retries+1, lastErr)
}

// decodeResponse unmarshals the named element of a SOAP body into v.
func decodeResponse(resp []byte, element string, v any) error {
	var envelope struct {
		Body struct {
			Inner []byte `xml:",innerxml"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(resp, &envelope); err != nil {
		return &apperr.ControlError{Action: element, Description: "malformed response: " + err.Error()}
	}
	if err := xml.Unmarshal(envelope.Body.Inner, v); err != nil {
		return &apperr.ControlError{Action: element, Description: "malformed response: " + err.Error()}
	}
	return nil
}
