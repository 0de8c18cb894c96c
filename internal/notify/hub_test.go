package notify

import (
	"sync"
	"testing"

	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	var first, second []*v1.ChoiceEvent
	hub.Subscribe(func(evt *v1.ChoiceEvent) { first = append(first, evt) })
	hub.Subscribe(func(evt *v1.ChoiceEvent) { second = append(second, evt) })

	evt := &v1.ChoiceEvent{ID: "evt-1", UserID: "reader-1"}
	hub.Publish(evt)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Same(t, evt, first[0])
}

func TestHub_PanickingSubscriberIsIsolated(t *testing.T) {
	hub := NewHub()

	var delivered int
	hub.Subscribe(func(*v1.ChoiceEvent) { panic("subscriber bug") })
	hub.Subscribe(func(*v1.ChoiceEvent) { delivered++ })

	require.NotPanics(t, func() {
		hub.Publish(&v1.ChoiceEvent{ID: "evt-1"})
	})
	require.Equal(t, 1, delivered)
}

func TestHub_NilSubscriberIgnored(t *testing.T) {
	hub := NewHub()
	hub.Subscribe(nil)

	require.NotPanics(t, func() {
		hub.Publish(&v1.ChoiceEvent{ID: "evt-1"})
	})
}

func TestHub_ConcurrentSubscribeAndPublish(t *testing.T) {
	hub := NewHub()

	var mu sync.Mutex
	var count int
	hub.Subscribe(func(*v1.ChoiceEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Publish(&v1.ChoiceEvent{ID: "evt"})
		}()
		go func() {
			defer wg.Done()
			hub.Subscribe(func(*v1.ChoiceEvent) {})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 10, count)
}
