package transport

import (
	"context"
	"net/http"
	"time"

	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/payment"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	watchBuffer = 16
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
)

func allowOrigin(origin string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		got := r.Header.Get("Origin")
		return got == "" || origin == "*" || got == origin
	}
}

// WatchPaymentStatus streams the order's payment status over a websocket:
// the current value first, then every change until either side closes.
func (h *Handler) WatchPaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.canView(w, r)
	if !ok {
		return
	}
	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "transport"),
		zap.String("method", "WatchPaymentStatus"),
		zap.String("order_id", orderID),
	)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := make(chan payment.Status, watchBuffer)
	stop, err := h.payments.WatchPaymentStatus(ctx, orderID, func(st payment.Status) {
		select {
		case updates <- st:
		default:
			log.Warn("watcher too slow, status dropped", zap.Int64("version", st.Version))
		}
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(st); err != nil {
				log.Debug("watch write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
