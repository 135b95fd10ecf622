package dialogue

import (
	"fmt"

	"github.com/ent0n29/uplink/internal/persona"
)

// Transcript is the ordered, append-only turn list of one interrogation.
// It is owned by the caller; the uplink service only ever reads a copy.
type Transcript struct {
	turns []Turn
	ids   map[string]struct{}
}

func NewTranscript() *Transcript {
	return &Transcript{ids: make(map[string]struct{})}
}

// FromTurns builds a transcript from caller-supplied history, validating every turn.
func FromTurns(turns []Turn) (*Transcript, error) {
	t := NewTranscript()
	for i, turn := range turns {
		if err := t.Append(turn); err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
	}
	return t, nil
}

func (t *Transcript) Append(turn Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if _, dup := t.ids[turn.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTurnID, turn.ID)
	}
	if n := len(t.turns); n > 0 && turn.CreatedAt.Before(t.turns[n-1].CreatedAt) {
		return ErrOutOfOrder
	}
	t.turns = append(t.turns, turn)
	t.ids[turn.ID] = struct{}{}
	return nil
}

// Turns returns a copy of the turn list.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

func (t *Transcript) Len() int { return len(t.turns) }

// CurrentState is the snapshot on the latest persona turn, or baseline when the
// persona has not spoken yet.
func (t *Transcript) CurrentState(baseline persona.EmotionalState) persona.EmotionalState {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RolePersona && t.turns[i].State != nil {
			return *t.turns[i].State
		}
	}
	return baseline
}
