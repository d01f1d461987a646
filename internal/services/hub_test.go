package services

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (c *fakeConn) WriteMessage(int, []byte) error { return nil }
func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newFakeClient(id string) (*WSClient, *fakeConn) {
	conn := &fakeConn{}
	return NewWSClient(id, conn), conn
}

func TestHub_SendToQueuesEvent(t *testing.T) {
	h := NewHub()
	c, _ := newFakeClient("tab-1")
	h.Add(c)

	h.SendTo("tab-1", WSEvent{Type: EventResult, InferenceMs: 120})
	h.SendTo("nobody", WSEvent{Type: EventResult})

	require.Len(t, c.send, 1)
	var ev WSEvent
	require.NoError(t, json.Unmarshal(<-c.send, &ev))
	assert.Equal(t, EventResult, ev.Type)
	assert.Equal(t, int64(120), ev.InferenceMs)
}

func TestHub_AddReplacesClient(t *testing.T) {
	h := NewHub()
	first, firstConn := newFakeClient("tab-1")
	second, secondConn := newFakeClient("tab-1")

	h.Add(first)
	h.Add(second)

	assert.True(t, firstConn.isClosed())
	assert.False(t, secondConn.isClosed())
	assert.Equal(t, 1, h.Len())

	_, open := <-first.send
	assert.False(t, open)

	// the replaced client going away leaves the new one registered
	h.Remove(first)
	assert.Equal(t, 1, h.Len())
	h.SendTo("tab-1", WSEvent{Type: EventSessionState})
	assert.Len(t, second.send, 1)

	h.Remove(second)
	assert.Equal(t, 0, h.Len())
	assert.True(t, secondConn.isClosed())
}

func TestHub_FullBufferEvictsClient(t *testing.T) {
	h := NewHub()
	c, conn := newFakeClient("tab-1")
	h.Add(c)

	for i := 0; i < clientBuffer; i++ {
		h.SendTo("tab-1", WSEvent{Type: EventResult})
	}
	assert.Equal(t, 1, h.Len())

	h.SendTo("tab-1", WSEvent{Type: EventResult})
	assert.Equal(t, 0, h.Len())
	assert.True(t, conn.isClosed())
}

func TestHub_SendRacesReconnect(t *testing.T) {
	h := NewHub()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.SendTo("tab-1", WSEvent{Type: EventResult})
				}
			}
		}()
	}

	for i := 0; i < 300; i++ {
		c, _ := newFakeClient("tab-1")
		h.Add(c)
		if i%2 == 0 {
			h.Remove(c)
		}
	}
	close(stop)
	wg.Wait()

	h.Shutdown()
	assert.Equal(t, 0, h.Len())
}
