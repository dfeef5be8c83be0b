package logs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_Send(t *testing.T) {
	sub := newSubscription[string](nil, 10)

	ok := sub.Send("hello")
	assert.True(t, ok)

	assert.Equal(t, "hello", <-sub.Channel())
}

func TestSubscription_Accept(t *testing.T) {
	sub := newSubscription(func(s string) bool { return s == "web" }, 10)

	sub.Send("web")
	// Filtered out, Send still reports success
	assert.True(t, sub.Send("api"))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "web", msg)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected to receive message")
	}

	select {
	case <-sub.Channel():
		t.Fatal("should not receive filtered message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_Close(t *testing.T) {
	sub := newSubscription[string](nil, 10)

	sub.Close()
	assert.False(t, sub.Send("hello"))

	// Double close should be safe
	sub.Close()
}

func TestSubscription_FullChannel(t *testing.T) {
	sub := newSubscription[int](nil, 2)

	sub.Send(1)
	sub.Send(2)

	// Non-blocking drop
	assert.False(t, sub.Send(3))
}

func TestHub_Subscribe(t *testing.T) {
	h := NewHub[int](10)

	id, ch := h.Subscribe(nil)
	assert.NotEmpty(t, id)
	assert.NotNil(t, ch)
	assert.Equal(t, 1, h.Count())
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub[int](10)

	id, ch := h.Subscribe(nil)
	h.Unsubscribe(id)
	assert.Equal(t, 0, h.Count())

	_, ok := <-ch
	assert.False(t, ok)

	// Unknown id is a no-op
	h.Unsubscribe("sub-unknown")
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub[string](10)

	_, ch1 := h.Subscribe(nil)
	_, ch2 := h.Subscribe(nil)

	h.Broadcast("broadcast")

	assert.Equal(t, "broadcast", <-ch1)
	assert.Equal(t, "broadcast", <-ch2)
}

func TestHub_Close(t *testing.T) {
	h := NewHub[string](10)

	_, ch1 := h.Subscribe(nil)
	_, ch2 := h.Subscribe(nil)

	h.Close()
	assert.Equal(t, 0, h.Count())

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestHub_UniqueIDs(t *testing.T) {
	h := NewHub[int](1)
	id1, _ := h.Subscribe(nil)
	id2, _ := h.Subscribe(nil)
	require.NotEqual(t, id1, id2)
}

func TestHub_Concurrent(t *testing.T) {
	h := NewHub[string](100)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				id, _ := h.Subscribe(nil)
				h.Unsubscribe(id)
			}
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.Broadcast("concurrent")
			}
		}()
	}

	wg.Wait()
}
