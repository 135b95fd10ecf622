package uplink

import (
	"strings"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/persona"
)

// Chat roles understood by the inference engine.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider-agnostic request handed to a Transport.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
}

// BuildMessages turns persona, prior history and the new operator input into
// the ordered message list: system prompt, one message per prior turn, then
// the new input.
func BuildMessages(p persona.Persona, history []dialogue.Turn, input string) ([]Message, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: p.HiddenInstructions})
	for _, turn := range history {
		role := RoleUser
		if turn.Role == dialogue.RolePersona {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: turn.Text})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: input})
	return msgs, nil
}

func buildRequest(p persona.Persona, history []dialogue.Turn, input, format string) (ChatRequest, error) {
	msgs, err := BuildMessages(p, history, input)
	if err != nil {
		return ChatRequest{}, err
	}
	return ChatRequest{
		Model:    p.Model,
		Messages: msgs,
		Stream:   false,
		Format:   format,
	}, nil
}
