package wizard

import (
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/aspromise/ktv-casting/internal/core"
	"github.com/aspromise/ktv-casting/internal/room"
)

// Interactive provides interactive fallback functionality.
type Interactive struct {
	enabled bool
	devices []core.Device
}

// NewInteractive creates a new interactive handler.
func NewInteractive() *Interactive {
	return &Interactive{
		enabled: true,
	}
}

// SetEnabled enables or disables interactive mode.
func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

// SetDevices sets the available devices for the device picker.
func (i *Interactive) SetDevices(devices []core.Device) {
	i.devices = devices
}

// IsTerminal returns true if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptDevice launches the device picker if interactive mode is available.
// Returns the selected device, or nil if cancelled or not interactive.
func (i *Interactive) PromptDevice() (*core.Device, error) {
	if !i.CanInteract() || len(i.devices) == 0 {
		return nil, nil
	}
	return RunDevicePicker(i.devices)
}

// PromptRoomURL asks for the room link. Returns "" when not interactive.
func (i *Interactive) PromptRoomURL() (string, error) {
	if !i.CanInteract() {
		return "", nil
	}

	var raw string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Room link").
				Description("The KTV room to follow, e.g. https://ktv.example.com/102").
				Value(&raw).
				Validate(func(s string) error {
					_, err := room.ParseRoomURL(s)
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// SelectDevice picks a device without prompting when the choice is
// unambiguous: a configured name or ID match, or a single device.
func SelectDevice(devices []core.Device, want string) *core.Device {
	if want != "" {
		for i := range devices {
			if devices[i].ID == want || strings.EqualFold(devices[i].Name, want) {
				return &devices[i]
			}
		}
		return nil
	}
	if len(devices) == 1 {
		return &devices[0]
	}
	return nil
}

// NeedsDevice returns true if the user has to pick a device.
func NeedsDevice(want string, devices []core.Device) bool {
	return SelectDevice(devices, want) == nil
}
