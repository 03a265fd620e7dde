// Package castsync keeps a renderer playing whatever the room says is
// current, and asks the room to advance when the renderer finishes a track.
package castsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/core"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/logging"
	"github.com/aspromise/ktv-casting/internal/mailbox"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateCasting
	StateAdvancing
	StateRecovering
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCasting:
		return "casting"
	case StateAdvancing:
		return "advancing"
	case StateRecovering:
		return "recovering"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Renderer is the playback device being driven.
type Renderer interface {
	SetTrack(ctx context.Context, track core.Track) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Device() core.Device
	Rebind(device core.Device)
}

// Room is the remote queue.
type Room interface {
	Advance(ctx context.Context, fromRevision uint64) error
}

// Locator finds a device again after it dropped off the network.
type Locator interface {
	Locate(ctx context.Context, id string, timeout time.Duration) (core.Device, error)
}

// Options configures an Orchestrator.
type Options struct {
	RecoveryAttempts int
	RecoveryInterval time.Duration
	DiscoveryTimeout time.Duration
	// EndThreshold treats a playing track with this much time left as
	// finished. Zero disables it.
	EndThreshold time.Duration
	Logger       *zap.Logger
}

// Snapshot is a point-in-time view of the orchestrator.
type Snapshot struct {
	State      State                `json:"-"`
	StateName  string               `json:"state"`
	Device     core.Device          `json:"device"`
	Instructed *core.Track          `json:"instructed,omitempty"`
	Revision   uint64               `json:"revision"`
	Advances   int                  `json:"advances"`
	Attempts   int                  `json:"recovery_attempts"`
	LastStatus core.TransportStatus `json:"last_status"`
}

// Orchestrator reconciles the renderer with the room. All decisions are
// made by the Run goroutine.
type Orchestrator struct {
	renderer Renderer
	room     Room
	locator  Locator
	rooms    *mailbox.Slot[core.RoomState]
	statuses *mailbox.Slot[Observation]
	opts     Options
	log      *zap.Logger
	fatal    chan error

	// Owned by the Run goroutine.
	latest           core.RoomState
	hasLatest        bool
	seenRevision     bool
	lastRevision     uint64
	instructed       *core.Track
	instructedPaused bool
	instructedAt     time.Time
	sawPlaying       bool
	advanceFailed    bool
	advances         int
	attempts         int
	lastStatus       core.TransportStatus
	err              error

	mu        sync.RWMutex
	state     State
	snapshot  Snapshot
	listeners []func(from, to State)
}

// New creates an orchestrator reading room states and renderer
// observations from the given slots.
func New(renderer Renderer, room Room, locator Locator,
	rooms *mailbox.Slot[core.RoomState], statuses *mailbox.Slot[Observation], opts Options) *Orchestrator {
	if opts.RecoveryAttempts <= 0 {
		opts.RecoveryAttempts = 5
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = 5 * time.Second
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 3 * time.Second
	}

	o := &Orchestrator{
		renderer: renderer,
		room:     room,
		locator:  locator,
		rooms:    rooms,
		statuses: statuses,
		opts:     opts,
		log:      logging.OrNop(opts.Logger).Named("sync"),
		fatal:    make(chan error, 1),
	}
	o.publish()
	return o
}

// OnStateChange registers fn to be called after every state transition.
// Callbacks run on the Run goroutine and must not block.
func (o *Orchestrator) OnStateChange(fn func(from, to State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Snapshot returns the current view.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Fatal delivers ErrFatalDeviceLoss at most once.
func (o *Orchestrator) Fatal() <-chan error {
	return o.fatal
}

// Run processes room states, observations and recovery ticks until ctx is
// cancelled or the renderer is lost for good.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.opts.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.setState(StateTerminated)
			return ctx.Err()
		case <-o.rooms.Ready():
			o.pass(ctx)
		case <-o.statuses.Ready():
			o.pass(ctx)
		case <-ticker.C:
			o.handleRecoveryTick(ctx)
		}

		if o.State() == StateTerminated {
			return o.err
		}
	}
}

// pass handles whatever both slots hold. Room state goes first so a
// remote change wins over a completion inferred from the renderer.
func (o *Orchestrator) pass(ctx context.Context) {
	if rs, ok := o.rooms.Take(); ok {
		o.handleRoom(ctx, rs)
	}
	if obs, ok := o.statuses.Take(); ok {
		o.handleStatus(ctx, obs)
	}
}

func (o *Orchestrator) handleRoom(ctx context.Context, rs core.RoomState) {
	defer o.publish()

	if o.State() == StateTerminated {
		return
	}
	if o.seenRevision && !rs.NewerThan(o.lastRevision) {
		o.log.Debug("ignoring stale room state",
			zap.Uint64("revision", rs.Revision),
			zap.Uint64("last", o.lastRevision),
		)
		return
	}
	o.seenRevision = true
	o.lastRevision = rs.Revision
	o.latest = rs
	o.hasLatest = true

	// Applied once the renderer is back.
	if o.State() == StateRecovering {
		return
	}
	o.apply(ctx, rs)
}

// apply drives the renderer towards rs.
func (o *Orchestrator) apply(ctx context.Context, rs core.RoomState) {
	if !rs.HasTrack() {
		if o.instructed != nil {
			o.log.Info("room queue is empty, stopping renderer")
			if err := o.renderer.Stop(ctx); err != nil && o.controlFailed(ctx, "Stop", err) {
				return
			}
			o.instructed = nil
		}
		o.advanceFailed = false
		o.setState(StateIdle)
		return
	}

	if !rs.Current.Same(o.instructed) {
		o.cast(ctx, rs)
		return
	}

	if o.State() == StateAdvancing {
		// The room has not moved on yet.
		if o.advanceFailed {
			o.requestAdvance(ctx)
		}
		return
	}

	if rs.Paused() != o.instructedPaused {
		o.applyIntent(ctx, rs.Paused())
	}
}

// cast loads the room's current track and starts or pauses it.
func (o *Orchestrator) cast(ctx context.Context, rs core.RoomState) {
	track := *rs.Current
	o.log.Info("casting track",
		zap.String("title", track.DisplayTitle()),
		zap.String("url", track.URL),
		zap.Uint64("revision", rs.Revision),
	)

	action := "SetAVTransportURI"
	err := o.renderer.SetTrack(ctx, track)
	if err == nil {
		if rs.Paused() {
			action = "Pause"
			err = o.renderer.Pause(ctx)
		} else {
			action = "Play"
			err = o.renderer.Play(ctx)
		}
	}

	// Recorded even on a device fault so a rejected track is not retried
	// on every pass.
	o.instructed = &track
	o.instructedPaused = rs.Paused()
	o.instructedAt = time.Now()
	o.sawPlaying = false
	o.advanceFailed = false

	if err != nil && o.controlFailed(ctx, action, err) {
		return
	}
	if err == nil {
		o.attempts = 0
	}
	o.setState(StateCasting)
}

func (o *Orchestrator) applyIntent(ctx context.Context, paused bool) {
	var err error
	action := "Play"
	if paused {
		action = "Pause"
		err = o.renderer.Pause(ctx)
	} else {
		err = o.renderer.Play(ctx)
	}
	o.instructedPaused = paused
	if err != nil {
		o.controlFailed(ctx, action, err)
	}
}

// controlFailed handles a failed control call and reports whether the
// orchestrator left its current state because of it.
func (o *Orchestrator) controlFailed(ctx context.Context, action string, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, apperr.ErrDeviceUnreachable) {
		o.enterRecovering(err)
		return true
	}
	o.log.Warn("renderer rejected command", zap.String("action", action), zap.Error(err))
	return false
}

func (o *Orchestrator) handleStatus(ctx context.Context, obs Observation) {
	defer o.publish()

	state := o.State()
	if state == StateTerminated || state == StateRecovering {
		return
	}
	if obs.Err != nil {
		if ctx.Err() == nil && errors.Is(obs.Err, apperr.ErrDeviceUnreachable) {
			o.enterRecovering(obs.Err)
		}
		return
	}
	o.attempts = 0

	// Issued before the last SetTrack; describes the previous track.
	if obs.At.Before(o.instructedAt) {
		return
	}
	st := obs.Status
	o.lastStatus = st

	switch state {
	case StateCasting:
		if o.instructed == nil || !o.roomMatchesInstructed() {
			return
		}
		// Only PLAYING straight to STOPPED or NO_MEDIA ends a track.
		if o.instructedPaused || st.State == core.StatePaused {
			o.sawPlaying = false
			return
		}
		if st.State == core.StatePlaying {
			o.sawPlaying = true
			if o.nearEnd(st) {
				o.log.Info("track about to end", zap.Duration("position", st.Position), zap.Duration("duration", st.Duration))
				o.trackEnded(ctx)
			}
			return
		}
		if st.State.Finished() && o.sawPlaying {
			o.log.Info("track finished", zap.String("state", string(st.State)))
			o.trackEnded(ctx)
		}
	case StateAdvancing:
		if o.advanceFailed {
			o.requestAdvance(ctx)
		}
	}
}

func (o *Orchestrator) roomMatchesInstructed() bool {
	return o.hasLatest && o.latest.Current.Same(o.instructed)
}

func (o *Orchestrator) nearEnd(st core.TransportStatus) bool {
	if o.opts.EndThreshold <= 0 {
		return false
	}
	left, ok := st.Remaining()
	return ok && st.Position > 0 && left <= o.opts.EndThreshold
}

func (o *Orchestrator) trackEnded(ctx context.Context) {
	o.setState(StateAdvancing)
	o.requestAdvance(ctx)
}

// requestAdvance asks the room for the next track. A failure leaves
// advanceFailed set so the next pass tries again.
func (o *Orchestrator) requestAdvance(ctx context.Context) {
	err := o.room.Advance(ctx, o.lastRevision)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.advanceFailed = true
		o.log.Warn("advance request failed", zap.Uint64("revision", o.lastRevision), zap.Error(err))
		return
	}
	o.advanceFailed = false
	o.advances++
	o.log.Info("advance requested", zap.Uint64("revision", o.lastRevision))
}

func (o *Orchestrator) enterRecovering(cause error) {
	state := o.State()
	if state == StateRecovering || state == StateTerminated {
		return
	}
	o.log.Warn("renderer unreachable, recovering",
		zap.String("device", o.renderer.Device().Name),
		zap.Error(cause),
	)
	o.setState(StateRecovering)
}

// handleRecoveryTick rediscovers the device and, if found, rebinds and
// re-applies the latest room state.
func (o *Orchestrator) handleRecoveryTick(ctx context.Context) {
	defer o.publish()

	if o.State() != StateRecovering {
		return
	}

	o.attempts++
	dev := o.renderer.Device()
	found, err := o.locator.Locate(ctx, dev.ID, o.opts.DiscoveryTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.log.Warn("renderer not found",
			zap.String("device", dev.Name),
			zap.Int("attempt", o.attempts),
			zap.Int("max_attempts", o.opts.RecoveryAttempts),
			zap.Error(err),
		)
		if o.attempts >= o.opts.RecoveryAttempts {
			o.terminate(fmt.Errorf("%w: %s not seen after %d attempts", apperr.ErrFatalDeviceLoss, dev.Name, o.attempts))
		}
		return
	}

	o.renderer.Rebind(found)
	o.log.Info("renderer found again", zap.String("device", found.Name), zap.Int("attempt", o.attempts))

	o.instructed = nil
	o.setState(StateIdle)
	if o.hasLatest {
		o.apply(ctx, o.latest)
	}

	// Reachable by discovery but still failing control calls counts
	// against the same budget.
	if o.State() == StateRecovering && o.attempts >= o.opts.RecoveryAttempts {
		o.terminate(fmt.Errorf("%w: %s stopped responding", apperr.ErrFatalDeviceLoss, dev.Name))
	}
}

func (o *Orchestrator) terminate(err error) {
	if o.State() == StateTerminated {
		return
	}
	o.err = err
	o.log.Error("giving up on renderer", zap.Error(err))
	o.setState(StateTerminated)
	select {
	case o.fatal <- err:
	default:
	}
}

func (o *Orchestrator) setState(to State) {
	o.mu.Lock()
	from := o.state
	if from == to {
		o.mu.Unlock()
		return
	}
	o.state = to
	o.snapshot.State = to
	o.snapshot.StateName = to.String()
	listeners := append([]func(from, to State){}, o.listeners...)
	o.mu.Unlock()

	o.log.Debug("state change", zap.Stringer("from", from), zap.Stringer("to", to))
	for _, fn := range listeners {
		fn(from, to)
	}
}

// publish copies Run-owned fields into the snapshot.
func (o *Orchestrator) publish() {
	var instructed *core.Track
	if o.instructed != nil {
		t := *o.instructed
		instructed = &t
	}
	dev := o.renderer.Device()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = Snapshot{
		State:      o.state,
		StateName:  o.state.String(),
		Device:     dev,
		Instructed: instructed,
		Revision:   o.lastRevision,
		Advances:   o.advances,
		Attempts:   o.attempts,
		LastStatus: o.lastStatus,
	}
}
