package castsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/core"
	"github.com/aspromise/ktv-casting/internal/logging"
	"github.com/aspromise/ktv-casting/internal/mailbox"
)

// StatusSource reports the renderer's transport status.
type StatusSource interface {
	Status(ctx context.Context) (core.TransportStatus, error)
}

// Observation is the outcome of one status query. At is when the query
// was issued, so answers to queries sent before a SetTrack can be told apart.
type Observation struct {
	Status core.TransportStatus
	Err    error
	At     time.Time
}

// StatusPoller periodically queries the renderer and keeps the latest
// observation in a slot.
type StatusPoller struct {
	src      StatusSource
	interval time.Duration
	out      *mailbox.Slot[Observation]
	log      *zap.Logger
}

// NewStatusPoller creates a status poller; interval defaults to 1s.
func NewStatusPoller(src StatusSource, interval time.Duration, log *zap.Logger) *StatusPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatusPoller{
		src:      src,
		interval: interval,
		out:      mailbox.NewSlot[Observation](),
		log:      logging.OrNop(log).Named("status-poller"),
	}
}

// Observations returns the slot receiving status observations.
func (p *StatusPoller) Observations() *mailbox.Slot[Observation] {
	return p.out
}

// Run polls until ctx is cancelled.
func (p *StatusPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *StatusPoller) poll(ctx context.Context) {
	start := time.Now()
	status, err := p.src.Status(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Debug("status query failed", zap.Error(err))
	}
	p.out.Put(Observation{Status: status, Err: err, At: start})
}
