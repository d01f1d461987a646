package dispatch

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFor(t *testing.T) {
	next := sequentialSeeds(0)

	t.Run("numeric", func(t *testing.T) {
		req, err := requestFor(State{Prompt: "p", Seed: " 123 "}, Fast, next)
		require.NoError(t, err)
		assert.Equal(t, int64(123), req.Seed)
	})

	t.Run("empty_draws_new_seed_each_time", func(t *testing.T) {
		a, err := requestFor(State{Prompt: "p"}, Fast, next)
		require.NoError(t, err)
		b, err := requestFor(State{Prompt: "p"}, Fast, next)
		require.NoError(t, err)
		assert.NotEqual(t, a.Seed, b.Seed)
	})

	t.Run("garbage", func(t *testing.T) {
		req, err := requestFor(State{Prompt: "p", Seed: "12x"}, Refined, next)
		assert.ErrorIs(t, err, ErrInvalidSeed)
		assert.NotZero(t, req.Seed)
		assert.Equal(t, Refined, req.Quality)
	})
}

func TestRandomSeed_Canonical(t *testing.T) {
	canonical := regexp.MustCompile(`^(0|[1-9][0-9]{0,6})$`)
	for i := 0; i < 200; i++ {
		seed := RandomSeed()
		require.GreaterOrEqual(t, seed, int64(0))
		require.Less(t, seed, int64(seedSpace))
		require.Regexp(t, canonical, FormatSeed(seed))
	}
}

func TestWithResult_Overwrites(t *testing.T) {
	s := withResult(State{}, Result{Image: []byte{1}, InferenceTime: 0.5})
	s = withResult(s, Result{Image: []byte{2}, InferenceTime: 0.25})
	assert.Equal(t, []byte{2}, s.Latest)
	assert.Equal(t, int64(250), s.InferenceMillis())
}

func TestInferenceMillis_NoImage(t *testing.T) {
	assert.Zero(t, State{InferenceTime: 1}.InferenceMillis())
}
