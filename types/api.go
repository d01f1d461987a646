package types

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    int   `json:"status"`
	TimeStamp int64 `json:"timestamp"`
	Sessions  int   `json:"sessions"`
}

type ArchiveRequest struct {
	Tier string `json:"tier"`
}

type ArchiveResponse struct {
	JobID string `json:"jobId"`
}

// ClientMessage is what the page sends over the websocket.
type ClientMessage struct {
	Type   string `json:"type"` // prompt or seed
	Prompt string `json:"prompt,omitempty"`
	Seed   string `json:"seed,omitempty"`
}

type SessionStateResponse struct {
	SessionID     string  `json:"sessionId"`
	Prompt        string  `json:"prompt"`
	Seed          string  `json:"seed"`
	HasImage      bool    `json:"hasImage"`
	InferenceTime float64 `json:"inferenceTime,omitempty"`
	Pending       bool    `json:"pending"`
}
