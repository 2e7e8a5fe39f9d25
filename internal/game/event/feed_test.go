package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/riposte/internal/game/event"
)

func TestFeed_EmitsInRegistrationOrder(t *testing.T) {
	var f event.Feed[int]
	var got []string
	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })
	f.Subscribe(func(v int) { got = append(got, "c") })

	f.Emit(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFeed_ZeroValueEmitIsNoop(t *testing.T) {
	var f event.Feed[string]
	assert.NotPanics(t, func() { f.Emit("x") })
	assert.Equal(t, 0, f.Len())
}

func TestFeed_UnsubscribeStopsDelivery(t *testing.T) {
	var f event.Feed[int]
	calls := 0
	unsub := f.Subscribe(func(int) { calls++ })
	f.Emit(1)
	unsub()
	unsub() // idempotent
	f.Emit(2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.Len())
}

func TestFeed_UnsubscribeSelfDuringEmit(t *testing.T) {
	var f event.Feed[int]
	var got []string
	var unsubA func()
	unsubA = f.Subscribe(func(int) {
		got = append(got, "a")
		unsubA()
	})
	f.Subscribe(func(int) { got = append(got, "b") })

	f.Emit(1)
	f.Emit(2)
	assert.Equal(t, []string{"a", "b", "b"}, got)
}

func TestFeed_UnsubscribeLaterSubscriberDuringEmit(t *testing.T) {
	var f event.Feed[int]
	var got []string
	var unsubB func()
	f.Subscribe(func(int) {
		got = append(got, "a")
		unsubB()
	})
	unsubB = f.Subscribe(func(int) { got = append(got, "b") })

	f.Emit(1)
	assert.Equal(t, []string{"a"}, got)
}

func TestFeed_Property_EveryActiveSubscriberCalledOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "subscribers")
		var f event.Feed[int]
		counts := make([]int, n)
		for i := 0; i < n; i++ {
			i := i
			f.Subscribe(func(int) { counts[i]++ })
		}
		f.Emit(0)
		for i, c := range counts {
			assert.Equal(rt, 1, c, "subscriber %d", i)
		}
	})
}
