package fal

import (
	"errors"
	"fmt"
)

var (
	ErrConnect         = errors.New("realtime channel connect failed")
	ErrMalformedResult = errors.New("malformed realtime result")
	ErrClosed          = errors.New("realtime channel closed")
)

// Input is the request body understood by the lightning SDXL realtime app.
type Input struct {
	Prompt              string `msgpack:"prompt" json:"prompt"`
	Seed                int64  `msgpack:"seed" json:"seed"`
	NumInferenceSteps   string `msgpack:"num_inference_steps" json:"num_inference_steps"`
	ImageSize           string `msgpack:"image_size" json:"image_size"`
	EnableSafetyChecker bool   `msgpack:"enable_safety_checker" json:"enable_safety_checker"`
	SyncMode            bool   `msgpack:"sync_mode" json:"sync_mode"`
	NumImages           int    `msgpack:"num_images" json:"num_images"`
}

// NewInput fills in the fixed parameters every request carries.
func NewInput(prompt string, seed int64, steps string) Input {
	return Input{
		Prompt:              prompt,
		Seed:                seed,
		NumInferenceSteps:   steps,
		ImageSize:           "square_hd",
		EnableSafetyChecker: true,
		SyncMode:            true,
		NumImages:           1,
	}
}

type Image struct {
	Content     []byte `msgpack:"content" json:"content"`
	URL         string `msgpack:"url" json:"url"`
	Width       int    `msgpack:"width" json:"width"`
	Height      int    `msgpack:"height" json:"height"`
	ContentType string `msgpack:"content_type" json:"content_type"`
}

type Timings struct {
	Inference float64 `msgpack:"inference" json:"inference"`
}

type Output struct {
	Images  []Image `msgpack:"images" json:"images"`
	Timings Timings `msgpack:"timings" json:"timings"`
	Seed    int64   `msgpack:"seed" json:"seed"`
}

// frame is any message the realtime endpoint sends: a result, or a control
// message tagged with an x-fal- type.
type frame struct {
	Output `msgpack:",inline"`

	Type      string `msgpack:"type" json:"type"`
	Error     string `msgpack:"error" json:"error"`
	Reason    string `msgpack:"reason" json:"reason"`
	RequestID string `msgpack:"request_id" json:"request_id"`
}

// ServiceError is an error frame reported by the inference service.
type ServiceError struct {
	Code   string
	Reason string
}

func (e *ServiceError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("fal error: %s", e.Code)
	}
	return fmt.Sprintf("fal error: %s: %s", e.Code, e.Reason)
}

type tokenRequest struct {
	AllowedApps     []string `json:"allowed_apps"`
	TokenExpiration int      `json:"token_expiration"`
}
