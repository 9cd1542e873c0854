package events

import (
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type change struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func liveSubscribers[T any](h *Hub[T], key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

func TestHub_PublishSubscribe(t *testing.T) {
	t.Run("Every subscriber sees every change", func(t *testing.T) {
		hub := NewHub[change]()
		var a, b []string

		hub.Subscribe("o1", func(c change) { a = append(a, c.Status) })
		hub.Subscribe("o1", func(c change) { b = append(b, c.Status) })
		hub.Subscribe("o2", func(c change) { t.Fatal("wrong key") })

		hub.Publish("o1", change{"o1", "processing"})
		hub.Publish("o1", change{"o1", "success"})

		assert.Equal(t, []string{"processing", "success"}, a)
		assert.Equal(t, []string{"processing", "success"}, b)
	})

	t.Run("Unsubscribe is idempotent", func(t *testing.T) {
		hub := NewHub[change]()
		calls := 0
		unsub := hub.Subscribe("o1", func(change) { calls++ })
		other := hub.Subscribe("o1", func(change) {})

		unsub()
		unsub()
		hub.Publish("o1", change{})

		assert.Equal(t, 0, calls)
		assert.Equal(t, 1, liveSubscribers(hub, "o1"))

		other()
		assert.Equal(t, 0, liveSubscribers(hub, "o1"))
	})

	t.Run("Callback may unsubscribe itself", func(t *testing.T) {
		hub := NewHub[change]()
		var unsub func()
		unsub = hub.Subscribe("o1", func(change) { unsub() })

		assert.NotPanics(t, func() { hub.Publish("o1", change{}) })
		assert.Equal(t, 0, liveSubscribers(hub, "o1"))
	})

	t.Run("Concurrent", func(t *testing.T) {
		hub := NewHub[change]()
		var mu sync.Mutex
		seen := 0
		hub.Subscribe("o1", func(change) {
			mu.Lock()
			seen++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.Publish("o1", change{})
				hub.Subscribe("o1", func(change) {})()
			}()
		}
		wg.Wait()

		assert.Equal(t, 20, seen)
	})
}

func TestRemote_DropsLocalPublish(t *testing.T) {
	hub := NewHub[change]()
	calls := 0
	hub.Subscribe("o1", func(change) { calls++ })

	var bus Bus[change] = Remote[change]{hub}
	bus.Publish("o1", change{})
	assert.Equal(t, 0, calls)

	hub.Publish("o1", change{})
	assert.Equal(t, 1, calls)
}

func TestPGBridge_Dispatch(t *testing.T) {
	hub := NewHub[change]()
	b := &PGBridge[change]{hub: hub, key: func(c change) string { return c.OrderID }}

	var got []change
	hub.Subscribe("o1", func(c change) { got = append(got, c) })

	b.dispatch(nil)
	b.dispatch(&pq.Notification{Channel: PaymentStatusChannel, Extra: `not json`})
	b.dispatch(&pq.Notification{Channel: PaymentStatusChannel, Extra: `{"orderId":"o1","status":"success"}`})
	b.dispatch(&pq.Notification{Channel: PaymentStatusChannel, Extra: `{"orderId":"o2","status":"failed"}`})

	assert.Equal(t, []change{{"o1", "success"}}, got)
}
