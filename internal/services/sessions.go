package services

import (
	"context"
	"errors"
	"sync"

	"sage/config"
	"sage/internal/clients/fal"
	"sage/internal/dispatch"

	"github.com/charmbracelet/log"
)

const connectionKeyPrefix = "lightning-sdxl"

// Channel is a realtime connection to the inference service.
type Channel interface {
	Send(fal.Input) error
	Close()
}

type ChannelFactory func(connectionKey string, onResult func(fal.Output), onError func(error)) Channel

func FalChannels(cfg config.FalConfig, tokens fal.TokenSource) ChannelFactory {
	return func(connectionKey string, onResult func(fal.Output), onError func(error)) Channel {
		return fal.NewRealtime(fal.RealtimeOptions{
			App:           cfg.App,
			Host:          cfg.RealtimeHost,
			ConnectionKey: connectionKey,
			Throttle:      cfg.Throttle(),
			Tokens:        tokens,
			OnResult:      onResult,
			OnError:       onError,
		})
	}
}

// channelSender maps dispatcher quality tiers onto step counts.
type channelSender struct {
	ch           Channel
	fastSteps    string
	refinedSteps string
}

func (c channelSender) Send(r dispatch.Request) error {
	steps := c.fastSteps
	if r.Quality == dispatch.Refined {
		steps = c.refinedSteps
	}
	return c.ch.Send(fal.NewInput(r.Prompt, r.Seed, steps))
}

type Session struct {
	ID         string
	dispatcher *dispatch.Dispatcher
	channel    Channel
	cancel     context.CancelFunc
}

func (s *Session) Start() { s.dispatcher.Start() }
func (s *Session) EditPrompt(prompt string) { s.dispatcher.EditPrompt(prompt) }
func (s *Session) EditSeed(seed string) { s.dispatcher.EditSeed(seed) }
func (s *Session) Snapshot() dispatch.State { return s.dispatcher.Snapshot() }

func (s *Session) close() {
	s.dispatcher.Close()
	s.cancel()
	s.channel.Close()
}

// SessionManager keeps one dispatcher and realtime channel per page.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	notifier   Notifier
	newChannel ChannelFactory
	cfg        config.RealtimeConfig
	onHealth   func(bool)
}

func NewSessionManager(notifier Notifier, newChannel ChannelFactory, cfg config.RealtimeConfig, onHealth func(bool)) *SessionManager {
	if onHealth == nil {
		onHealth = func(bool) {}
	}
	return &SessionManager{
		sessions:   map[string]*Session{},
		notifier:   notifier,
		newChannel: newChannel,
		cfg:        cfg,
		onHealth:   onHealth,
	}
}

// Open creates the session for id, replacing any previous one.
func (m *SessionManager) Open(id string) *Session {
	logger := log.With("component", "session", "session", id)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{ID: id, cancel: cancel}

	s.channel = m.newChannel(connectionKeyPrefix+"-"+id,
		func(out fal.Output) {
			m.onHealth(true)
			s.dispatcher.Deliver(dispatch.Result{
				Image:         out.Images[0].Content,
				InferenceTime: out.Timings.Inference,
			})
		},
		func(err error) {
			if errors.Is(err, fal.ErrConnect) {
				m.onHealth(false)
			}
			m.warn(id, err)
		},
	)

	s.dispatcher = dispatch.New(dispatch.Options{
		Sender: channelSender{
			ch:           s.channel,
			fastSteps:    m.cfg.FastSteps,
			refinedSteps: m.cfg.RefinedSteps,
		},
		DefaultPrompt: m.cfg.DefaultPrompt,
		Quiescence:    m.cfg.Quiescence(),
		OnResult: func(st dispatch.State) {
			m.notifier.SendTo(id, resultEvent(id, st))
		},
		OnWarning: func(err error) {
			m.warn(id, err)
		},
		Logger: logger,
	})
	go s.dispatcher.Run(ctx)

	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = s
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	logger.Info("session opened")
	return s
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close ends s if it is still the live session for its id.
func (m *SessionManager) Close(s *Session) {
	m.mu.Lock()
	cur, ok := m.sessions[s.ID]
	if ok && cur == s {
		delete(m.sessions, s.ID)
	}
	m.mu.Unlock()

	s.close()
	log.With("component", "session", "session", s.ID).Info("session closed")
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (m *SessionManager) warn(id string, err error) {
	m.notifier.SendTo(id, WSEvent{
		Type:      EventChannelError,
		SessionID: id,
		Message:   err.Error(),
	})
}

func stateEvent(id string, st dispatch.State) WSEvent {
	seed := st.Seed
	return WSEvent{
		Type:      EventSessionState,
		SessionID: id,
		Prompt:    st.Prompt,
		Seed:      &seed,
	}
}

func resultEvent(id string, st dispatch.State) WSEvent {
	return WSEvent{
		Type:          EventResult,
		SessionID:     id,
		Image:         st.Latest,
		InferenceTime: st.InferenceTime,
		InferenceMs:   st.InferenceMillis(),
	}
}
