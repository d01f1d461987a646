package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

var logFormats = []string{"", "text", "json"}

type Config struct {
	Api      ApiConfig      `yaml:"api"`
	Log      LogConfig      `yaml:"log"`
	Fal      FalConfig      `yaml:"fal"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Export   ExportConfig   `yaml:"export"`
	Rpc      RpcConfig      `yaml:"rpc"`
}

type ApiConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowedOrigins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type FalConfig struct {
	// Key is the fal credential ("key_id:key_secret"). When empty, KeyParam is
	// looked up in AWS SSM Parameter Store.
	Key                string `yaml:"key"`
	KeyParam           string `yaml:"keyParam"`
	App                string `yaml:"app"`
	RestUrl            string `yaml:"restUrl"`
	RealtimeHost       string `yaml:"realtimeHost"`
	TokenExpirationSec int    `yaml:"tokenExpirationSec"`
	ThrottleMs         int    `yaml:"throttleMs"`
}

type RealtimeConfig struct {
	QuiescenceMs  int    `yaml:"quiescenceMs"`
	FastSteps     string `yaml:"fastSteps"`
	RefinedSteps  string `yaml:"refinedSteps"`
	DefaultPrompt string `yaml:"defaultPrompt"`
}

type ExportConfig struct {
	Store         string `yaml:"store"` // dir or s3
	Dir           string `yaml:"dir"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	QueueSize     int    `yaml:"queueSize"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
}

type RpcConfig struct {
	Port string `yaml:"port"`
}

const DefaultPrompt = "A cinematic shot of a baby raccoon wearing an intricate italian priest robe"

// Normalize fills zero values with the defaults the app was tuned for.
func (c *Config) Normalize() {
	if c.Api.Port == "" {
		c.Api.Port = "8080"
	}
	if c.Api.AllowedOrigins == "" {
		c.Api.AllowedOrigins = "*"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Fal.App == "" {
		c.Fal.App = "fal-ai/fast-lightning-sdxl"
	}
	if c.Fal.RestUrl == "" {
		c.Fal.RestUrl = "https://rest.alpha.fal.ai"
	}
	if c.Fal.RealtimeHost == "" {
		c.Fal.RealtimeHost = "wss://fal.run"
	}
	if c.Fal.TokenExpirationSec <= 0 {
		c.Fal.TokenExpirationSec = 120
	}
	if c.Fal.ThrottleMs <= 0 {
		c.Fal.ThrottleMs = 64
	}
	if c.Realtime.QuiescenceMs <= 0 {
		c.Realtime.QuiescenceMs = 500
	}
	if c.Realtime.FastSteps == "" {
		c.Realtime.FastSteps = "2"
	}
	if c.Realtime.RefinedSteps == "" {
		c.Realtime.RefinedSteps = "4"
	}
	if strings.TrimSpace(c.Realtime.DefaultPrompt) == "" {
		c.Realtime.DefaultPrompt = DefaultPrompt
	}
	if c.Export.Store == "" {
		c.Export.Store = "dir"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "./exports"
	}
	if c.Export.QueueSize <= 0 {
		c.Export.QueueSize = 32
	}
	if c.Export.MaxConcurrent <= 0 {
		c.Export.MaxConcurrent = 2
	}
}

func (c *Config) Validate() error {
	if c.Fal.Key == "" && c.Fal.KeyParam == "" {
		return fmt.Errorf("fal.key or fal.keyParam is required")
	}
	switch c.Export.Store {
	case "dir":
	case "s3":
		if c.Export.Bucket == "" {
			return fmt.Errorf("export.bucket is required when export.store is s3")
		}
	default:
		return fmt.Errorf("unknown export.store %q", c.Export.Store)
	}
	if !lo.Contains(logFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

func (r RealtimeConfig) Quiescence() time.Duration {
	return time.Duration(r.QuiescenceMs) * time.Millisecond
}

func (f FalConfig) Throttle() time.Duration {
	return time.Duration(f.ThrottleMs) * time.Millisecond
}
