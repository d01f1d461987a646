package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type Options struct {
	Sender        Sender
	DefaultPrompt string
	Quiescence    time.Duration

	// Optional.
	Scheduler Scheduler
	Seeds     SeedSource
	OnResult  func(State)
	OnWarning func(error)
	Logger    *log.Logger
}

type (
	started        struct{}
	promptEdited   struct{ prompt string }
	seedEdited     struct{ seed string }
	resultReceived struct{ result Result }
	refinedDue     struct {
		gen uint64
		req Request
	}
	snapshotReq struct{ reply chan State }
)

// Dispatcher turns prompt and seed edits into generation requests. Every edit
// sends a fast request right away and arms a single refined request that fires
// once edits have been quiet for the quiescence window.
//
// All state lives in the goroutine running Run; the exported methods only post
// events to it.
type Dispatcher struct {
	sender    Sender
	sched     Scheduler
	seeds     SeedSource
	quiet     time.Duration
	onResult  func(State)
	onWarning func(error)
	log       *log.Logger

	events    chan any
	done      chan struct{}
	closeOnce sync.Once

	// owned by Run
	state State
	timer Timer
	gen   uint64
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		sender:    opts.Sender,
		sched:     opts.Scheduler,
		seeds:     opts.Seeds,
		quiet:     opts.Quiescence,
		onResult:  opts.OnResult,
		onWarning: opts.OnWarning,
		log:       opts.Logger,
		events:    make(chan any, 64),
		done:      make(chan struct{}),
	}
	if d.sched == nil {
		d.sched = clockScheduler{}
	}
	if d.seeds == nil {
		d.seeds = RandomSeed
	}
	if d.quiet <= 0 {
		d.quiet = 500 * time.Millisecond
	}
	if d.log == nil {
		d.log = log.With("component", "dispatch")
	}

	d.state = State{
		Prompt: opts.DefaultPrompt,
		Seed:   FormatSeed(d.seeds()),
	}
	return d
}

// Run processes events until ctx is done or Close is called.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

// Start sends the first refined image for the default prompt and initial seed.
func (d *Dispatcher) Start() { d.post(started{}) }

func (d *Dispatcher) EditPrompt(prompt string) { d.post(promptEdited{prompt}) }

func (d *Dispatcher) EditSeed(seed string) { d.post(seedEdited{seed}) }

// Deliver hands a result from the realtime channel to the dispatcher.
func (d *Dispatcher) Deliver(r Result) { d.post(resultReceived{r}) }

// Snapshot returns the state after every previously posted event has been
// handled. It returns the zero State once the dispatcher is closed.
func (d *Dispatcher) Snapshot() State {
	reply := make(chan State, 1)
	if !d.post(snapshotReq{reply}) {
		return State{}
	}
	select {
	case s := <-reply:
		return s
	case <-d.done:
		return State{}
	}
}

func (d *Dispatcher) post(ev any) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.events <- ev:
		return true
	case <-d.done:
		return false
	}
}

func (d *Dispatcher) handle(ev any) {
	switch ev := ev.(type) {
	case started:
		req, err := requestFor(d.state, Refined, d.seeds)
		d.warnIf(err)
		d.send(req)
	case promptEdited:
		d.state = withPrompt(d.state, ev.prompt)
		d.dispatch()
	case seedEdited:
		d.state = withSeed(d.state, ev.seed)
		d.dispatch()
	case refinedDue:
		if ev.gen != d.gen || d.timer == nil {
			// superseded by a later edit
			return
		}
		d.timer = nil
		d.state = withPending(d.state, false)
		d.send(ev.req)
	case resultReceived:
		d.state = withResult(d.state, ev.result)
		if d.onResult != nil {
			d.onResult(d.state)
		}
	case snapshotReq:
		ev.reply <- d.state
	}
}

// dispatch sends the fast request now and re-arms the refined one. Both share
// the same prompt and seed.
func (d *Dispatcher) dispatch() {
	d.cancelPending()

	req, err := requestFor(d.state, Fast, d.seeds)
	d.warnIf(err)
	d.send(req)

	refined := req
	refined.Quality = Refined

	d.gen++
	gen := d.gen
	d.timer = d.sched.AfterFunc(d.quiet, func() {
		d.post(refinedDue{gen: gen, req: refined})
	})
	d.state = withPending(d.state, true)
}

func (d *Dispatcher) cancelPending() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.state = withPending(d.state, false)
}

func (d *Dispatcher) send(req Request) {
	d.log.Debug("sending request", "quality", req.Quality, "seed", req.Seed, "promptLen", len(req.Prompt))
	if err := d.sender.Send(req); err != nil {
		d.warnIf(fmt.Errorf("send %s request: %w", req.Quality, err))
	}
}

func (d *Dispatcher) warnIf(err error) {
	if err == nil {
		return
	}
	d.log.Warn("dispatch", "err", err)
	if d.onWarning != nil {
		d.onWarning(err)
	}
}
