// Package session owns the single pairing of a renderer with a room.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aspromise/ktv-casting/internal/castsync"
	"github.com/aspromise/ktv-casting/internal/config"
	"github.com/aspromise/ktv-casting/internal/core"
	"github.com/aspromise/ktv-casting/internal/dlna"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/logging"
	"github.com/aspromise/ktv-casting/internal/room"
)

// Manager starts and stops sessions. At most one is active.
type Manager struct {
	cfg     *config.Config
	locator castsync.Locator
	log     *zap.Logger

	mu        sync.Mutex
	active    *Session
	listeners []func(s *Session, from, to castsync.State)
}

// NewManager creates a manager. locator is used to find the renderer again
// after it drops off the network.
func NewManager(cfg *config.Config, locator castsync.Locator, log *zap.Logger) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Manager{
		cfg:     cfg,
		locator: locator,
		log:     logging.OrNop(log),
	}
}

// OnStateChange registers fn for the state changes of every session
// started afterwards.
func (m *Manager) OnStateChange(fn func(s *Session, from, to castsync.State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Active returns the running session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start binds device to the room at roomURL and begins synchronizing.
func (m *Manager) Start(ctx context.Context, device core.Device, roomURL string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrSessionAlreadyActive, m.active.ID)
	}

	addr, err := room.ParseRoomURL(roomURL)
	if err != nil {
		return nil, err
	}
	protocol, err := room.ParseProtocol(m.cfg.Room.Protocol)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidConfig, err)
	}

	id := uuid.NewString()
	log := m.log.With(zap.String("session", id))

	renderer := dlna.NewRenderer(device, dlna.RendererOptions{
		CallTimeout: m.cfg.Renderer.CallTimeoutDuration(),
		Retries:     m.cfg.Renderer.Retries,
		BackoffBase: m.cfg.Renderer.BackoffBase(),
		Logger:      log,
	})
	client := room.NewClient(addr, m.cfg.Room.Timeout(), log)
	client.SetProtocol(protocol)
	poller := room.NewPoller(client, m.cfg.Room.PollEvery(), log)
	status := castsync.NewStatusPoller(renderer, m.cfg.Renderer.StatusEvery(), log)
	orch := castsync.New(renderer, client, m.locator, poller.Updates(), status.Observations(), castsync.Options{
		RecoveryAttempts: m.cfg.Sync.RecoveryAttempts,
		RecoveryInterval: m.cfg.Sync.RecoveryEvery(),
		DiscoveryTimeout: m.cfg.Renderer.DiscoveryWindow(),
		EndThreshold:     m.cfg.Sync.EndWindow(),
		Logger:           log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        id,
		Device:    device,
		Room:      addr,
		StartedAt: time.Now(),
		orch:      orch,
		poller:    poller,
		renderer:  renderer,
		cancel:    cancel,
		done:      make(chan struct{}),
		manager:   m,
	}

	for _, fn := range m.listeners {
		orch.OnStateChange(func(from, to castsync.State) { fn(s, from, to) })
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return status.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx) })
	if m.cfg.Room.Notify {
		notifier := room.NewNotifier(addr, m.cfg.Room.NotifyNickname, poller.Nudge, log)
		g.Go(func() error { return notifier.Run(gctx) })
	}

	go func() {
		s.finish(g.Wait())
	}()

	m.active = s
	log.Info("session started",
		zap.String("device", device.Name),
		zap.String("room", addr.String()),
	)
	return s, nil
}

// Stop stops the active session. Without one it does nothing.
func (m *Manager) Stop() error {
	if s := m.Active(); s != nil {
		s.Stop()
	}
	return nil
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == s {
		m.active = nil
	}
}

// Session is one running device/room pairing.
type Session struct {
	ID        string
	Device    core.Device
	Room      room.Address
	StartedAt time.Time

	orch     *castsync.Orchestrator
	poller   *room.Poller
	renderer *dlna.Renderer
	manager  *Manager

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

// Status is a point-in-time view of a session.
type Status struct {
	ID           string            `json:"id"`
	Room         string            `json:"room"`
	StartedAt    time.Time         `json:"started_at"`
	Sync         castsync.Snapshot `json:"sync"`
	PollFailures int64             `json:"poll_failures"`
	RoomRevision uint64            `json:"room_revision,omitempty"`
	RoomTrack    *core.Track       `json:"room_track,omitempty"`
}

// Status returns the session's current view.
func (s *Session) Status() Status {
	st := Status{
		ID:           s.ID,
		Room:         s.Room.String(),
		StartedAt:    s.StartedAt,
		Sync:         s.orch.Snapshot(),
		PollFailures: s.poller.Failures(),
	}
	if last, ok := s.poller.Last(); ok {
		st.RoomRevision = last.Revision
		st.RoomTrack = last.Current
	}
	return st
}

// Snapshot returns the synchronization state alone.
func (s *Session) Snapshot() castsync.Snapshot {
	return s.orch.Snapshot()
}

// Renderer returns the renderer driven by this session.
func (s *Session) Renderer() *dlna.Renderer {
	return s.renderer
}

// Stop cancels the session and waits for it to wind down. Calling it
// again is a no-op.
func (s *Session) Stop() {
	s.stopOnce.Do(s.cancel)
	<-s.done
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended: nil after Stop, ErrFatalDeviceLoss
// when the renderer could not be recovered. Only valid after Done.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) finish(err error) {
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.err = err
	s.cancel()

	log := s.manager.log.With(zap.String("session", s.ID))
	if err != nil {
		log.Error("session ended", zap.Error(err))
	} else {
		log.Info("session stopped")
	}

	s.manager.release(s)
	close(s.done)
}
