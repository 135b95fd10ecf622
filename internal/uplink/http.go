package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPTransport posts non-streaming chat requests to an Ollama-compatible endpoint.
type HTTPTransport struct {
	url    string
	client *http.Client
}

func NewHTTPTransport(baseURL, chatPath string, timeout time.Duration) *HTTPTransport {
	if strings.TrimSpace(chatPath) == "" {
		chatPath = DefaultChatPath
	}
	if !strings.HasPrefix(chatPath, "/") {
		chatPath = "/" + chatPath
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		url: strings.TrimRight(strings.TrimSpace(baseURL), "/") + chatPath,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (t *HTTPTransport) URL() string { return t.url }

type chatEnvelope struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func (t *HTTPTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	req.Stream = false
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &StatusError{
			StatusCode: res.StatusCode,
			Status:     statusText(res),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTransportUnavailable, err)
	}

	var env chatEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: response envelope: %w", ErrSignalCorrupted, err)
	}
	if env.Message == nil {
		return "", fmt.Errorf("%w: response envelope has no message", ErrSignalCorrupted)
	}
	return env.Message.Content, nil
}

func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}
	return text
}
