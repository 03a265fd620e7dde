package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrDiscoveryEmpty       = errors.New("no renderers found")
	ErrDeviceNotFound       = errors.New("device not found")
	ErrDeviceUnreachable    = errors.New("device unreachable")
	ErrControl              = errors.New("control action rejected")
	ErrPollFailure          = errors.New("room poll failed")
	ErrAdvanceRejected      = errors.New("advance request rejected")
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrNoActiveSession      = errors.New("no active session")
	ErrFatalDeviceLoss      = errors.New("renderer lost")
	ErrInvalidRoomURL       = errors.New("invalid room url")
	ErrConfigNotFound       = errors.New("config file not found")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// ControlError is a fault reported by a renderer in response to an action.
type ControlError struct {
	Action      string
	Code        int
	Description string
}

func (e *ControlError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s: %s", e.Action, e.Description)
	}
	return fmt.Sprintf("%s: upnp error %d: %s", e.Action, e.Code, e.Description)
}

// Is lets errors.Is(err, ErrControl) match any ControlError.
func (e *ControlError) Is(target error) bool {
	return target == ErrControl
}

// IsControlError reports whether err carries a device fault.
func IsControlError(err error) bool {
	var ce *ControlError
	return errors.As(err, &ce)
}

// CastError wraps an error with a user-friendly suggestion.
type CastError struct {
	Err        error
	Suggestion string
}

func (e *CastError) Error() string {
	return e.Err.Error()
}

func (e *CastError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &CastError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var castErr *CastError
	if errors.As(err, &castErr) && castErr.Suggestion != "" {
		return castErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrDiscoveryEmpty) {
		return "Make sure the TV or speaker is on and on the same network, then run 'ktv-casting devices' again"
	}

	if errors.Is(err, ErrDeviceNotFound) {
		return "Run 'ktv-casting devices' to see available renderers"
	}

	if errors.Is(err, ErrFatalDeviceLoss) {
		return "The renderer stopped responding. Check it is powered on and select it again"
	}

	if errors.Is(err, ErrDeviceUnreachable) || strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") {
		return "Check that the renderer is reachable from this machine"
	}

	if errors.Is(err, ErrControl) {
		return "The renderer rejected the command. It may not support this media format"
	}

	if errors.Is(err, ErrInvalidRoomURL) {
		return "Pass the full room link, for example https://ktv.example.com/102"
	}

	if errors.Is(err, ErrSessionAlreadyActive) {
		return "Stop the current session before starting another one"
	}

	if errors.Is(err, ErrPollFailure) {
		return "Check your internet connection and the room link"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Run 'ktv-casting config init' to create a configuration file"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
