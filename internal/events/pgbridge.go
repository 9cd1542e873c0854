package events

import (
	"context"
	"encoding/json"
	"time"

	"marketingclass-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PaymentStatusChannel is the NOTIFY channel payment writes publish on.
const PaymentStatusChannel = "payment_status_changed"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// PGBridge feeds NOTIFY payloads from Postgres into a local Hub.
type PGBridge[T any] struct {
	listener *pq.Listener
	channel  string
	hub      *Hub[T]
	key      func(T) string
}

func NewPGBridge[T any](dsn, channel string, hub *Hub[T], key func(T) string) *PGBridge[T] {
	log := logger.L().With(zap.String("component", "pgbridge"), zap.String("channel", channel))

	listener := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})

	return &PGBridge[T]{
		listener: listener,
		channel:  channel,
		hub:      hub,
		key:      key,
	}
}

// Run blocks until ctx is done.
func (b *PGBridge[T]) Run(ctx context.Context) error {
	if err := b.listener.Listen(b.channel); err != nil {
		return err
	}
	defer b.listener.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-b.listener.Notify:
			b.dispatch(n)
		case <-time.After(pingInterval):
			go func() {
				_ = b.listener.Ping()
			}()
		}
	}
}

// dispatch ignores nil notifications, which pq sends after a reconnect.
func (b *PGBridge[T]) dispatch(n *pq.Notification) {
	if n == nil {
		return
	}

	var v T
	if err := json.Unmarshal([]byte(n.Extra), &v); err != nil {
		logger.L().Warn("pgbridge: bad payload",
			zap.String("channel", n.Channel),
			zap.Error(err),
		)
		return
	}
	b.hub.Publish(b.key(v), v)
}
