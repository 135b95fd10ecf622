package uplink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transport delivers one chat request to an inference engine and returns the
// raw text the model produced.
type Transport interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

const (
	ModeOllama = "ollama"
	ModeMock   = "mock"

	DefaultBaseURL  = "http://localhost:11434"
	DefaultChatPath = "/api/chat"
	DefaultTimeout  = 120 * time.Second
)

// Config controls transport construction.
type Config struct {
	Mode     string
	BaseURL  string
	ChatPath string
	Timeout  time.Duration
}

// NewTransport selects a transport by mode. The mock engine is only used when
// selected explicitly.
func NewTransport(cfg Config) (Transport, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = ModeOllama
	}

	switch mode {
	case ModeOllama:
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("uplink base url is required for ollama mode")
		}
		return NewHTTPTransport(cfg.BaseURL, cfg.ChatPath, cfg.Timeout), nil
	case ModeMock:
		return NewMockTransport(), nil
	default:
		return nil, fmt.Errorf("unsupported uplink mode %q", cfg.Mode)
	}
}
