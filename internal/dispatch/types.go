package dispatch

import (
	"errors"
	"time"
)

var ErrInvalidSeed = errors.New("seed is not an integer")

type Quality int

const (
	Fast Quality = iota
	Refined
)

func (q Quality) String() string {
	switch q {
	case Fast:
		return "fast"
	case Refined:
		return "refined"
	default:
		return "unknown"
	}
}

// Request is one generation request. It is never modified after being handed to
// a Sender.
type Request struct {
	Prompt  string
	Seed    int64
	Quality Quality
}

type Result struct {
	Image         []byte
	InferenceTime float64 // seconds
}

// State is everything a session shows: the inputs as typed and the newest image.
// Latest is shared, never written in place; treat it as read-only.
type State struct {
	Prompt        string
	Seed          string
	Latest        []byte
	InferenceTime float64
	Pending       bool
}

func (s State) HasImage() bool {
	return len(s.Latest) > 0
}

// InferenceMillis is the inference time rounded to whole milliseconds, 0 when
// unknown.
func (s State) InferenceMillis() int64 {
	if !s.HasImage() || s.InferenceTime <= 0 {
		return 0
	}
	return int64(s.InferenceTime*1000 + 0.5)
}

// Sender is the realtime channel requests go out on.
type Sender interface {
	Send(Request) error
}

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
