package dispatch

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

const seedSpace = 10_000_000

// SeedSource returns a fresh seed each call.
type SeedSource func() int64

func RandomSeed() int64 {
	return rand.Int64N(seedSpace)
}

func FormatSeed(seed int64) string {
	return strconv.FormatInt(seed, 10)
}

func withPrompt(s State, prompt string) State {
	s.Prompt = prompt
	return s
}

func withSeed(s State, seed string) State {
	s.Seed = seed
	return s
}

// withResult overwrites whatever image is shown. Results carry no sequence
// number, so the last one delivered wins even if its request was older.
func withResult(s State, r Result) State {
	s.Latest = r.Image
	s.InferenceTime = r.InferenceTime
	return s
}

func withPending(s State, pending bool) State {
	s.Pending = pending
	return s
}

// requestFor builds a request from the current inputs. A blank seed draws a new
// one from next; so does an unparsable seed, which is also reported.
func requestFor(s State, q Quality, next SeedSource) (Request, error) {
	req := Request{Prompt: s.Prompt, Quality: q}

	text := strings.TrimSpace(s.Seed)
	if text == "" {
		req.Seed = next()
		return req, nil
	}

	seed, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		req.Seed = next()
		return req, fmt.Errorf("%w: %q", ErrInvalidSeed, s.Seed)
	}
	req.Seed = seed
	return req, nil
}
