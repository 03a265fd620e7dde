package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/aspromise/ktv-casting/internal/core"
	"github.com/aspromise/ktv-casting/internal/dlna"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/wizard"
)

// resolveDevice picks the renderer to drive. A descriptor URL from the
// --location flag or the config skips discovery. Otherwise the --device
// flag or the configured default is matched against a fresh scan, and the
// picker is shown when several renderers answer.
func resolveDevice(ctx context.Context, d *dlna.Discovery) (core.Device, error) {
	loc := location
	if loc == "" {
		loc = cfg.Renderer.Location
	}
	if loc != "" {
		return d.FromLocation(ctx, loc)
	}

	want := device
	if want == "" {
		want = cfg.Renderer.Device
	}

	devices, err := d.Discover(ctx, cfg.Renderer.DiscoveryWindow())
	if err != nil {
		return core.Device{}, err
	}
	if len(devices) == 0 {
		return core.Device{}, apperr.ErrDiscoveryEmpty
	}

	if sel := wizard.SelectDevice(devices, want); sel != nil {
		return *sel, nil
	}
	if want != "" {
		return core.Device{}, fmt.Errorf("%w: %s", apperr.ErrDeviceNotFound, want)
	}

	interactive := wizard.NewInteractive()
	interactive.SetEnabled(!JSONOutput())
	interactive.SetDevices(devices)
	if !interactive.CanInteract() {
		return core.Device{}, apperr.WithSuggestion(
			fmt.Errorf("%d renderers found", len(devices)),
			"Choose one with --device, or set renderer.device in the config",
		)
	}

	sel, err := interactive.PromptDevice()
	if err != nil {
		return core.Device{}, fmt.Errorf("device picker: %w", err)
	}
	if sel == nil {
		return core.Device{}, fmt.Errorf("no device selected")
	}
	if Verbose() {
		fmt.Fprintf(os.Stderr, "Selected %s (%s)\n", sel.Name, sel.ID)
	}
	return *sel, nil
}

// newRenderer binds a renderer client to dev with the configured limits.
func newRenderer(dev core.Device) *dlna.Renderer {
	return dlna.NewRenderer(dev, dlna.RendererOptions{
		CallTimeout: cfg.Renderer.CallTimeoutDuration(),
		Retries:     cfg.Renderer.Retries,
		BackoffBase: cfg.Renderer.BackoffBase(),
		Logger:      logger,
	})
}

// connect resolves the device and returns a renderer bound to it.
func connect(ctx context.Context) (*dlna.Renderer, error) {
	dev, err := resolveDevice(ctx, dlna.NewDiscovery(logger))
	if err != nil {
		return nil, err
	}
	return newRenderer(dev), nil
}
