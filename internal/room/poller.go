package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/core"
	"github.com/aspromise/ktv-casting/internal/logging"
	"github.com/aspromise/ktv-casting/internal/mailbox"
)

// Fetcher reads a room's state.
type Fetcher interface {
	Fetch(ctx context.Context) (core.RoomState, error)
}

// Poller periodically fetches room state and publishes every newer
// revision into a latest-value slot.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	updates  *mailbox.Slot[core.RoomState]
	nudge    chan struct{}
	log      *zap.Logger

	failures atomic.Int64

	mu        sync.RWMutex
	last      core.RoomState
	hasLast   bool
	published bool
	delivered uint64
}

// NewPoller creates a poller; interval defaults to 3s.
func NewPoller(fetcher Fetcher, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		updates:  mailbox.NewSlot[core.RoomState](),
		nudge:    make(chan struct{}, 1),
		log:      logging.OrNop(log).Named("room-poller"),
	}
}

// Updates returns the slot receiving new room states.
func (p *Poller) Updates() *mailbox.Slot[core.RoomState] {
	return p.updates
}

// Nudge requests an immediate fetch. Extra nudges while one is pending are dropped.
func (p *Poller) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// Failures returns the number of failed fetches so far.
func (p *Poller) Failures() int64 {
	return p.failures.Load()
}

// Last returns the newest state published so far.
func (p *Poller) Last() (core.RoomState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.hasLast
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		case <-p.nudge:
			p.poll(ctx)
		}
	}
}

// poll performs one fetch.
func (p *Poller) poll(ctx context.Context) {
	state, err := p.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n := p.failures.Add(1)
		if n == 1 || n%10 == 0 {
			p.log.Warn("room poll failed", zap.Int64("failures", n), zap.Error(err))
		} else {
			p.log.Debug("room poll failed", zap.Int64("failures", n), zap.Error(err))
		}
		return
	}

	p.mu.Lock()
	fresh := !p.published || state.NewerThan(p.delivered)
	if fresh {
		p.published = true
		p.delivered = state.Revision
		p.last = state
		p.hasLast = true
	}
	p.mu.Unlock()

	if !fresh {
		return
	}

	p.log.Debug("room state changed",
		zap.Uint64("revision", state.Revision),
		zap.String("track", state.Current.DisplayTitle()),
		zap.String("intent", string(state.Intent)),
	)
	p.updates.Put(state)
}
