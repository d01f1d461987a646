package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

const snippetLimit = 8 << 10

func Post[b, r any](h *http.Client, ctx context.Context, url string, body b, headers map[string]string) (r, error) {
	var response r

	payload, err := json.Marshal(body)
	if err != nil {
		return response, fmt.Errorf("marshal %s: %w", url, err)
	}
	// caller headers win; their map is not modified
	headers = lo.Assign(map[string]string{"Content-Type": "application/json"}, headers)

	return do[r](h, ctx, http.MethodPost, url, bytes.NewReader(payload), headers)
}

func do[r any](h *http.Client, ctx context.Context, method, url string, body io.Reader, headers map[string]string) (r, error) {
	var response r

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response, err
	}

	for key, val := range headers {
		req.Header.Add(key, val)
	}

	resp, err := h.Do(req)
	if err != nil {
		return response, err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return response, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, fmt.Errorf("http %s %s: %s: %s", method, url, resp.Status, snippet(responseBytes))
	}

	if err := json.Unmarshal(responseBytes, &response); err != nil {
		return response, fmt.Errorf("unmarshal %s: %w: %s", url, err, snippet(responseBytes))
	}

	return response, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > snippetLimit {
		s = s[:snippetLimit]
	}
	return s
}
