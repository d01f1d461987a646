package fal

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sage/internal/clients/transport"
)

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenClient mints short-lived JWTs that let a realtime connection through
// without sending the long-lived key over the websocket.
type TokenClient struct {
	httpClient *http.Client
	restUrl    string
	key        string
	app        string
	expiration int
}

func NewTokenClient(key, restUrl, app string, expirationSec int) *TokenClient {
	return &TokenClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		restUrl:    strings.TrimRight(restUrl, "/"),
		key:        key,
		app:        app,
		expiration: expirationSec,
	}
}

func (t *TokenClient) Token(ctx context.Context) (string, error) {
	headers := map[string]string{
		"Authorization": "Key " + t.key,
		"Accept":        "application/json",
	}
	return transport.Post[tokenRequest, string](t.httpClient, ctx, t.restUrl+"/tokens/", tokenRequest{
		AllowedApps:     []string{appAlias(t.app)},
		TokenExpiration: t.expiration,
	}, headers)
}

// appAlias strips the owner: "fal-ai/fast-lightning-sdxl" -> "fast-lightning-sdxl".
func appAlias(app string) string {
	parts := strings.Split(strings.Trim(app, "/"), "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return parts[0]
}
