package dialogue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ent0n29/uplink/internal/persona"
)

func TestCurrentStateFallsBackToBaseline(t *testing.T) {
	baseline := persona.NewEmotionalState(80, 10, 50)
	tr := NewTranscript()
	require.Equal(t, baseline, tr.CurrentState(baseline))

	require.NoError(t, tr.Append(NewOperatorTurn("where were you")))
	require.Equal(t, baseline, tr.CurrentState(baseline))
}

func TestCurrentStateUsesLatestPersonaTurn(t *testing.T) {
	baseline := persona.NewEmotionalState(80, 10, 50)
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewOperatorTurn("q1")))
	require.NoError(t, tr.Append(NewPersonaTurn("a1", persona.NewEmotionalState(60, 20, 50))))
	require.NoError(t, tr.Append(NewOperatorTurn("q2")))
	latest := persona.NewEmotionalState(25, 70, 90)
	require.NoError(t, tr.Append(NewPersonaTurn("a2", latest)))
	require.NoError(t, tr.Append(NewOperatorTurn("q3")))

	got := tr.CurrentState(baseline)
	require.Equal(t, latest, got)
	require.True(t, got.IsCritical)
}

func TestAppendRejectsMisplacedState(t *testing.T) {
	tr := NewTranscript()

	op := NewOperatorTurn("x")
	s := persona.NewEmotionalState(50, 50, 50)
	op.State = &s
	require.True(t, errors.Is(tr.Append(op), ErrOperatorState))

	p := NewPersonaTurn("y", s)
	p.State = nil
	require.True(t, errors.Is(tr.Append(p), ErrMissingState))

	bad := NewOperatorTurn("z")
	bad.Role = "narrator"
	require.True(t, errors.Is(tr.Append(bad), ErrUnknownRole))
	require.Equal(t, 0, tr.Len())
}

func TestAppendEnforcesOrderAndUniqueness(t *testing.T) {
	tr := NewTranscript()
	first := NewOperatorTurn("a")
	require.NoError(t, tr.Append(first))
	require.True(t, errors.Is(tr.Append(first), ErrDuplicateTurnID))

	older := NewOperatorTurn("b")
	older.CreatedAt = first.CreatedAt.Add(-time.Second)
	require.True(t, errors.Is(tr.Append(older), ErrOutOfOrder))
}

func TestFromTurnsNormalizesPersonaStates(t *testing.T) {
	raw := persona.EmotionalState{Stability: 200, Aggression: -5, Deception: 40}
	turns := []Turn{
		NewOperatorTurn("q"),
		{ID: "p-1", Role: RolePersona, Text: "a", CreatedAt: time.Now().UTC().Add(time.Second), State: &raw},
	}
	tr, err := FromTurns(turns)
	require.NoError(t, err)
	got := tr.Turns()[1].State
	require.Equal(t, persona.EmotionalState{Stability: 100, Aggression: 0, Deception: 40}, *got)
}

func TestFromTurnsReportsIndex(t *testing.T) {
	_, err := FromTurns([]Turn{NewOperatorTurn("q"), {Role: RoleOperator, Text: "no id"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "history[1]")
	require.True(t, errors.Is(err, ErrMissingTurnID))
}

func TestTurnsReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(NewOperatorTurn("a")))
	turns := tr.Turns()
	turns[0].Text = "mutated"
	require.Equal(t, "a", tr.Turns()[0].Text)
}
