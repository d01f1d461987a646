package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	assert.Equal(t, "8080", cfg.Api.Port)
	assert.Equal(t, "*", cfg.Api.AllowedOrigins)
	assert.Equal(t, "fal-ai/fast-lightning-sdxl", cfg.Fal.App)
	assert.Equal(t, 64*time.Millisecond, cfg.Fal.Throttle())
	assert.Equal(t, 500*time.Millisecond, cfg.Realtime.Quiescence())
	assert.Equal(t, "2", cfg.Realtime.FastSteps)
	assert.Equal(t, "4", cfg.Realtime.RefinedSteps)
	assert.Equal(t, DefaultPrompt, cfg.Realtime.DefaultPrompt)
	assert.Equal(t, "dir", cfg.Export.Store)
}

func TestValidate(t *testing.T) {
	t.Run("missing_key", func(t *testing.T) {
		var cfg Config
		cfg.Normalize()
		require.Error(t, cfg.Validate())
	})

	t.Run("key_param_is_enough", func(t *testing.T) {
		var cfg Config
		cfg.Fal.KeyParam = "/sage/fal-key"
		cfg.Normalize()
		require.NoError(t, cfg.Validate())
	})

	t.Run("s3_needs_bucket", func(t *testing.T) {
		var cfg Config
		cfg.Fal.Key = "id:secret"
		cfg.Export.Store = "s3"
		cfg.Normalize()
		require.Error(t, cfg.Validate())

		cfg.Export.Bucket = "sage-exports"
		require.NoError(t, cfg.Validate())
	})

	t.Run("unknown_store", func(t *testing.T) {
		var cfg Config
		cfg.Fal.Key = "id:secret"
		cfg.Export.Store = "ftp"
		cfg.Normalize()
		require.Error(t, cfg.Validate())
	})
}
