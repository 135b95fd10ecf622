package dialogue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/uplink/internal/persona"
)

type Role string

const (
	RoleOperator Role = "operator"
	RolePersona  Role = "persona"
)

var (
	ErrUnknownRole     = errors.New("unknown turn role")
	ErrOperatorState   = errors.New("operator turns cannot carry an emotional state")
	ErrMissingState    = errors.New("persona turns must carry an emotional state")
	ErrOutOfOrder      = errors.New("turn created before the previous turn")
	ErrMissingTurnID   = errors.New("turn id is required")
	ErrDuplicateTurnID = errors.New("duplicate turn id")
)

// Turn is one message in an interrogation. State is only set on persona turns.
type Turn struct {
	ID        string                  `json:"id"`
	Role      Role                    `json:"role"`
	Text      string                  `json:"text"`
	CreatedAt time.Time               `json:"created_at"`
	State     *persona.EmotionalState `json:"state,omitempty"`
}

func NewOperatorTurn(text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleOperator,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func NewPersonaTurn(text string, state persona.EmotionalState) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RolePersona,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		State:     &state,
	}
}

// Validate checks role and state placement. States decoded from outside are
// re-normalized so no out-of-range snapshot survives.
func (t *Turn) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingTurnID
	}
	switch t.Role {
	case RoleOperator:
		if t.State != nil {
			return ErrOperatorState
		}
	case RolePersona:
		if t.State == nil {
			return ErrMissingState
		}
		s := t.State.Normalize()
		t.State = &s
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRole, t.Role)
	}
	return nil
}
