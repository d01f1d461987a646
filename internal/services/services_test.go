package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"sage/config"
	"sage/internal/clients/fal"

	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	inputs   []fal.Input
	closed   bool
	onResult func(fal.Output)
	onError  func(error)
}

func (c *fakeChannel) Send(in fal.Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, in)
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) sent() []fal.Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fal.Input(nil), c.inputs...)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeChannels struct {
	mu    sync.Mutex
	byKey map[string]*fakeChannel
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{byKey: map[string]*fakeChannel{}}
}

func (f *fakeChannels) factory(key string, onResult func(fal.Output), onError func(error)) Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeChannel{onResult: onResult, onError: onError}
	f.byKey[key] = c
	return c
}

func (f *fakeChannels) get(t *testing.T, sessionID string) *fakeChannel {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byKey[connectionKeyPrefix+"-"+sessionID]
	require.True(t, ok, "no channel for session %s", sessionID)
	return c
}

// recordingNotifier keeps every event and passes it on to next when set.
type recordingNotifier struct {
	next Notifier

	mu     sync.Mutex
	events []WSEvent
}

func (r *recordingNotifier) SendTo(id string, ev WSEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	if r.next != nil {
		r.next.SendTo(id, ev)
	}
}

func (r *recordingNotifier) byType(kind string) []WSEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []WSEvent
	for _, ev := range r.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func testRealtimeConfig() config.RealtimeConfig {
	cfg := config.Config{}
	cfg.Normalize()
	return cfg.Realtime
}

func sampleJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), 90, uint8(y * 8), 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(buf, img, nil))
	return buf.Bytes()
}

// deliver pushes a result through the session's channel callback and waits for
// the dispatcher to apply it.
func deliver(t *testing.T, channels *fakeChannels, s *Session, img []byte, seconds float64) {
	t.Helper()
	channels.get(t, s.ID).onResult(fal.Output{
		Images:  []fal.Image{{Content: img}},
		Timings: fal.Timings{Inference: seconds},
	})
	s.Snapshot()
}
