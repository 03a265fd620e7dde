package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aspromise/ktv-casting/internal/logging"
)

const (
	notifyPingInterval = 30 * time.Second
	notifyPongWait     = 60 * time.Second
	notifyMaxBackoff   = 60 * time.Second
)

// Notifier listens on the room's websocket for change notifications and
// calls onUpdate for each. Polling stays authoritative; a notification only
// makes the next fetch happen sooner.
type Notifier struct {
	url        string
	onUpdate   func()
	dialer     *websocket.Dialer
	log        *zap.Logger
	minBackoff time.Duration
}

type notifyMessage struct {
	Type string `json:"type"`
	Hash string `json:"hash,omitempty"`
}

// NewNotifier creates a notifier for the room at addr.
func NewNotifier(addr Address, nickname string, onUpdate func(), log *zap.Logger) *Notifier {
	return &Notifier{
		url:        addr.websocketURL(nickname),
		onUpdate:   onUpdate,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:        logging.OrNop(log).Named("room-notifier"),
		minBackoff: time.Second,
	}
}

// Run keeps a connection open until ctx is cancelled, reconnecting with
// exponential backoff capped at one minute.
func (n *Notifier) Run(ctx context.Context) error {
	backoff := n.minBackoff

	for {
		connected, err := n.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = n.minBackoff
		}
		n.log.Warn("room notifications disconnected",
			zap.Error(err),
			zap.Duration("retry_in", backoff),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > notifyMaxBackoff {
			backoff = notifyMaxBackoff
		}
	}
}

// listen runs one connection. connected reports whether the dial succeeded.
func (n *Notifier) listen(ctx context.Context) (connected bool, err error) {
	conn, _, err := n.dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	n.log.Info("listening for room notifications", zap.String("url", n.url))

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(notifyPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(notifyPongWait))
	})

	go func() {
		ticker := time.NewTicker(notifyPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	// The state may have changed while disconnected.
	n.onUpdate()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(notifyPongWait))
		if msgType != websocket.TextMessage {
			continue
		}

		var msg notifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			n.log.Debug("ignoring notification", zap.ByteString("data", data))
			continue
		}
		if msg.Type == "UPDATE" {
			n.log.Debug("room update notification", zap.String("hash", msg.Hash))
			n.onUpdate()
		}
	}
}
