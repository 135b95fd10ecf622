package uplink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockTransport is a deterministic local engine for demos and tests. Every
// operator message in the request wears the subject down a little further.
type MockTransport struct{}

func NewMockTransport() *MockTransport { return &MockTransport{} }

const (
	mockStartStability  = 80
	mockStabilityStep   = 12
	mockStartAggression = 20
	mockAggressionStep  = 9
	mockDeception       = 65
)

type mockPayload struct {
	Reply        string         `json:"reply"`
	PsychProfile map[string]int `json:"psych_profile"`
}

func (t *MockTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrTransportUnavailable, ctx.Err())
	default:
	}

	pressure := 0
	last := ""
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			pressure++
			last = m.Content
		}
	}

	body, err := json.Marshal(mockPayload{
		Reply: buildMockReply(last, pressure),
		PsychProfile: map[string]int{
			FieldStability:  mockStartStability - mockStabilityStep*pressure,
			FieldAggression: mockStartAggression + mockAggressionStep*pressure,
			FieldDeception:  mockDeception,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal mock payload: %w", err)
	}
	return "*the subject shifts in the chair* " + string(body) + "\n", nil
}

func buildMockReply(input string, pressure int) string {
	base := strings.TrimSpace(input)
	if base == "" {
		return "..."
	}
	if pressure > 4 {
		return fmt.Sprintf("Stop. Stop asking about %q. I... I never meant for any of it.", base)
	}
	return fmt.Sprintf("You keep asking about %q. I have nothing to add.", base)
}
