package services

import (
	"fmt"
	"sync"
	"testing"

	"sage/internal/clients/fal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_OpenStartsWithRefinedRequest(t *testing.T) {
	channels := newFakeChannels()
	notifier := &recordingNotifier{}
	m := NewSessionManager(notifier, channels.factory, testRealtimeConfig(), nil)
	defer m.Shutdown()

	s := m.Open("tab-1")
	s.Start()
	st := s.Snapshot()

	sent := channels.get(t, "tab-1").sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "4", sent[0].NumInferenceSteps)
	assert.Equal(t, st.Prompt, sent[0].Prompt)
	assert.Equal(t, st.Seed, fmt.Sprint(sent[0].Seed))
	assert.Equal(t, "square_hd", sent[0].ImageSize)
	assert.True(t, sent[0].SyncMode)
	assert.True(t, sent[0].EnableSafetyChecker)
	assert.Equal(t, 1, sent[0].NumImages)
}

func TestSessionManager_EditSendsFastSteps(t *testing.T) {
	channels := newFakeChannels()
	m := NewSessionManager(&recordingNotifier{}, channels.factory, testRealtimeConfig(), nil)
	defer m.Shutdown()

	s := m.Open("tab-1")
	s.EditSeed("99")
	s.EditPrompt("a fox in a suit")
	s.Snapshot()

	sent := channels.get(t, "tab-1").sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "2", sent[1].NumInferenceSteps)
	assert.Equal(t, "a fox in a suit", sent[1].Prompt)
	assert.Equal(t, int64(99), sent[1].Seed)
}

func TestSessionManager_ResultIsPushed(t *testing.T) {
	channels := newFakeChannels()
	notifier := &recordingNotifier{}
	m := NewSessionManager(notifier, channels.factory, testRealtimeConfig(), nil)
	defer m.Shutdown()

	s := m.Open("tab-1")
	deliver(t, channels, s, []byte{1, 2, 3}, 0.2049)

	results := notifier.byType(EventResult)
	require.Len(t, results, 1)
	assert.Equal(t, []byte{1, 2, 3}, results[0].Image)
	assert.Equal(t, int64(205), results[0].InferenceMs)
	assert.Equal(t, "tab-1", results[0].SessionID)
}

func TestSessionManager_ConnectErrorFlipsHealth(t *testing.T) {
	channels := newFakeChannels()
	notifier := &recordingNotifier{}

	var mu sync.Mutex
	var health []bool
	m := NewSessionManager(notifier, channels.factory, testRealtimeConfig(), func(ok bool) {
		mu.Lock()
		health = append(health, ok)
		mu.Unlock()
	})
	defer m.Shutdown()

	s := m.Open("tab-1")
	ch := channels.get(t, "tab-1")
	ch.onError(fmt.Errorf("%w: dial refused", fal.ErrConnect))
	deliver(t, channels, s, []byte{9}, 0.1)

	errs := notifier.byType(EventChannelError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "dial refused")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true}, health)
}

func TestSessionManager_ReopenReplacesAndCloses(t *testing.T) {
	channels := newFakeChannels()
	m := NewSessionManager(&recordingNotifier{}, channels.factory, testRealtimeConfig(), nil)
	defer m.Shutdown()

	first := m.Open("tab-1")
	firstChannel := channels.get(t, "tab-1")
	second := m.Open("tab-1")

	assert.True(t, firstChannel.isClosed())
	assert.Equal(t, 1, m.Len())

	// closing the stale session must not evict the new one
	m.Close(first)
	got, ok := m.Get("tab-1")
	require.True(t, ok)
	assert.Same(t, second, got)

	m.Close(second)
	_, ok = m.Get("tab-1")
	assert.False(t, ok)
	assert.True(t, channels.get(t, "tab-1").isClosed())
}
