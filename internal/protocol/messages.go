package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/persona"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeOperatorTurn  MessageType = "operator_turn"
	TypePersonaTurn   MessageType = "persona_turn"
	TypeUplinkFailure MessageType = "uplink_failure"
	TypeErrorEvent    MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// OperatorTurn asks for one persona reply. It carries the full history because
// the server keeps no conversation state. An empty PersonaID selects the
// server's default persona.
type OperatorTurn struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	PersonaID string          `json:"persona_id,omitempty"`
	History   []dialogue.Turn `json:"history"`
	Input     string          `json:"input"`
}

type PersonaTurn struct {
	Type      MessageType            `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Turn      dialogue.Turn          `json:"turn"`
	State     persona.EmotionalState `json:"state"`
}

type UplinkFailure struct {
	Type       MessageType `json:"type"`
	RequestID  string      `json:"request_id,omitempty"`
	Kind       string      `json:"kind"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"status_code,omitempty"`
	Retryable  bool        `json:"retryable"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeOperatorTurn:
		var msg OperatorTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Input) == "" {
			return nil, errors.New("invalid operator_turn: input is required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
