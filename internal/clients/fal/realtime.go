package fal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"
)

const (
	dialTimeout  = 15 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 32 << 20
)

type RealtimeOptions struct {
	App           string
	Host          string // e.g. wss://fal.run
	ConnectionKey string
	Throttle      time.Duration
	Tokens        TokenSource

	OnResult func(Output)
	OnError  func(error)

	// Optional.
	Dialer *websocket.Dialer
	Logger *log.Logger
}

// Realtime is one persistent connection to a fal realtime app. The socket is
// opened on the first send and reopened on the next send after it drops.
// Outgoing messages are spaced at least Throttle apart; while a send waits for
// its slot, a newer one replaces it.
type Realtime struct {
	opts    RealtimeOptions
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	log     *log.Logger

	wake       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	writerDone chan struct{}

	pmu     sync.Mutex
	pending []byte

	mu sync.Mutex
	ws *websocket.Conn
}

func NewRealtime(opts RealtimeOptions) *Realtime {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Realtime{
		opts:       opts,
		dialer:     opts.Dialer,
		limiter:    rate.NewLimiter(rate.Every(opts.Throttle), 1),
		log:        opts.Logger,
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		writerDone: make(chan struct{}),
	}
	if opts.Throttle <= 0 {
		r.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if r.dialer == nil {
		r.dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	if r.log == nil {
		r.log = log.With("component", "fal", "connectionKey", opts.ConnectionKey)
	}

	go r.writeLoop()
	return r
}

// Send hands in to the writer, replacing any message still waiting for the
// throttle. Connection problems are reported through OnError, not here.
func (r *Realtime) Send(in Input) error {
	if r.ctx.Err() != nil {
		return ErrClosed
	}

	payload, err := msgpack.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}

	r.pmu.Lock()
	if r.pending != nil {
		r.log.Debug("dropping superseded request")
	}
	r.pending = payload
	r.pmu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

func (r *Realtime) hasPending() bool {
	r.pmu.Lock()
	defer r.pmu.Unlock()
	return r.pending != nil
}

func (r *Realtime) takePending() []byte {
	r.pmu.Lock()
	defer r.pmu.Unlock()
	msg := r.pending
	r.pending = nil
	return msg
}

func (r *Realtime) Close() {
	r.cancel()
	<-r.writerDone

	r.mu.Lock()
	ws := r.ws
	r.ws = nil
	r.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}
}

func (r *Realtime) writeLoop() {
	defer close(r.writerDone)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
			if !r.hasPending() {
				continue
			}
			if err := r.limiter.Wait(r.ctx); err != nil {
				return
			}
			msg := r.takePending()
			if msg == nil {
				continue
			}

			ws, err := r.current()
			if err != nil {
				r.report(fmt.Errorf("%w: %w", ErrConnect, err))
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				r.drop(ws)
				r.report(fmt.Errorf("write: %w", err))
			}
		}
	}
}

// current returns the open socket, dialing a new one if needed. Only the
// writer goroutine calls it.
func (r *Realtime) current() (*websocket.Conn, error) {
	r.mu.Lock()
	ws := r.ws
	r.mu.Unlock()
	if ws != nil {
		return ws, nil
	}

	ctx, cancel := context.WithTimeout(r.ctx, dialTimeout)
	defer cancel()

	token, err := r.opts.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	ws, _, err = r.dialer.DialContext(ctx, r.endpoint(token), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.opts.App, err)
	}
	ws.SetReadLimit(readLimit)
	r.log.Info("realtime channel connected", "app", r.opts.App)

	r.mu.Lock()
	r.ws = ws
	r.mu.Unlock()

	go r.readLoop(ws)
	return ws, nil
}

func (r *Realtime) endpoint(token string) string {
	host := strings.TrimRight(r.opts.Host, "/")
	app := strings.Trim(r.opts.App, "/")
	return fmt.Sprintf("%s/%s/realtime?fal_jwt_token=%s", host, app, url.QueryEscape(token))
}

func (r *Realtime) readLoop(ws *websocket.Conn) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			r.drop(ws)
			if r.ctx.Err() == nil {
				r.log.Info("realtime channel closed", "err", err)
			}
			return
		}
		r.handle(kind, data)
	}
}

func (r *Realtime) handle(kind int, data []byte) {
	var f frame
	var err error
	if kind == websocket.BinaryMessage {
		err = msgpack.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		r.report(fmt.Errorf("%w: %w", ErrMalformedResult, err))
		return
	}

	switch {
	case f.Type == "x-fal-error":
		r.report(&ServiceError{Code: f.Error, Reason: f.Reason})
		return
	case strings.HasPrefix(f.Type, "x-fal-"):
		r.log.Debug("control message", "type", f.Type)
		return
	}

	if len(f.Images) == 0 || len(f.Images[0].Content) == 0 {
		r.report(fmt.Errorf("%w: no image content", ErrMalformedResult))
		return
	}

	if r.opts.OnResult != nil {
		r.opts.OnResult(f.Output)
	}
}

func (r *Realtime) drop(ws *websocket.Conn) {
	r.mu.Lock()
	if r.ws == ws {
		r.ws = nil
	}
	r.mu.Unlock()
	_ = ws.Close()
}

func (r *Realtime) report(err error) {
	r.log.Warn("realtime channel", "err", err)
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}
}
