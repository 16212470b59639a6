package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	assert.Zero(t, b.ClientCount())
	ch := b.Subscribe()
	assert.Equal(t, 1, b.ClientCount())
	b.Unsubscribe(ch)
	assert.Zero(t, b.ClientCount())
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeEntryCreated, Data: map[string]string{"path": "a.md"}})

	msg := receive(t, ch)
	assert.Contains(t, msg, "event: entry.created\n")
	assert.Contains(t, msg, `"path":"a.md"`)
	assert.True(t, strings.HasSuffix(msg, "\n\n"))
}

func TestPublishState(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishState(map[string]any{"phase": "cooling_down", "remaining_seconds": 12})
	msg := receive(t, ch)
	assert.Contains(t, msg, "event: publish.state")
	assert.Contains(t, msg, `"remaining_seconds":12`)
}

func TestPublishChange_TreeThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange("created", "docs/a.md")
	b.PublishChange("deleted", "docs/b.md")
	b.PublishChange("renamed", "docs/c.md")

	time.Sleep(50 * time.Millisecond)
	var tree, entries int
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), TypeTreeUpdated) {
				tree++
			} else {
				entries++
			}
		default:
			break loop
		}
	}
	assert.Equal(t, 2, entries, "unknown kinds are dropped")
	assert.Equal(t, 1, tree, "tree.updated is throttled")
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.PublishChange("updated", "x.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: entry.updated")
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Capacity is 64; the extra events must not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	require.Equal(t, 1, b.ClientCount())

	b.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "subscriber channel closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Zero(t, b.ClientCount())

	b.Publish(Event{Type: TypeEntryUpdated, Data: map[string]string{"path": "x.md"}})
	b.PublishChange("updated", "x.md")
	b.PublishState(nil)
}
