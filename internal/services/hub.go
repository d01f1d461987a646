package services

import (
	"encoding/json"
	"sync"
)

const (
	EventSessionState    = "session.state"
	EventResult          = "result"
	EventChannelError    = "channel.error"
	EventExportCompleted = "export.completed"
	EventExportFailed    = "export.failed"
)

type WSEvent struct {
	Type          string  `json:"type"`
	SessionID     string  `json:"sessionId,omitempty"`
	JobID         string  `json:"jobId,omitempty"`
	Message       string  `json:"message,omitempty"`
	Path          string  `json:"path,omitempty"`
	Tier          string  `json:"tier,omitempty"`
	Prompt        string  `json:"prompt,omitempty"`
	Seed          *string `json:"seed,omitempty"`
	Image         []byte  `json:"image,omitempty"`
	InferenceTime float64 `json:"inferenceTime,omitempty"`
	InferenceMs   int64   `json:"inferenceMs,omitempty"`
}

// Notifier delivers events to a connected page.
type Notifier interface {
	SendTo(clientId string, event WSEvent)
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
}

func safeCloseBytes(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func NewHub() *Hub {
	return &Hub{
		clients: map[string]*WSClient{},
	}
}

func (h *Hub) Add(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[c.id]; ok {
		old.close()
	}

	h.clients[c.id] = c
}

// Remove drops c if it is still the registered client for its id; a newer
// connection under the same id is left alone.
func (h *Hub) Remove(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		c.close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = map[string]*WSClient{}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// SendTo queues event for clientId. The send happens under the read lock so a
// concurrent Add or Remove cannot close the channel underneath it; a client
// whose buffer is full is dropped.
func (h *Hub) SendTo(clientId string, event WSEvent) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	c := h.clients[clientId]
	full := false
	if c != nil {
		select {
		case c.send <- b:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.Remove(c)
	}
}
