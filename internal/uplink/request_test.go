package uplink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/persona"
)

func testPersona() persona.Persona {
	return persona.Persona{
		ID:                 "subject",
		Name:               "Subject",
		Model:              "llama3.1",
		HiddenInstructions: "SECRET: you stole the keycard. Answer in JSON.",
		Baseline:           persona.NewEmotionalState(80, 20, 60),
	}
}

func TestBuildMessagesOrdering(t *testing.T) {
	op1 := dialogue.NewOperatorTurn("where were you at midnight")
	p1 := dialogue.NewPersonaTurn("charging", persona.NewEmotionalState(70, 20, 60))
	op2 := dialogue.NewOperatorTurn("the logs say otherwise")
	op2.CreatedAt = op2.CreatedAt.Add(time.Millisecond)

	p := testPersona()
	msgs, err := BuildMessages(p, []dialogue.Turn{op1, p1, op2}, "X")
	require.NoError(t, err)
	require.Equal(t, []Message{
		{Role: RoleSystem, Content: p.HiddenInstructions},
		{Role: RoleUser, Content: op1.Text},
		{Role: RoleAssistant, Content: p1.Text},
		{Role: RoleUser, Content: op2.Text},
		{Role: RoleUser, Content: "X"},
	}, msgs)
}

func TestBuildMessagesEmptyHistory(t *testing.T) {
	p := testPersona()
	msgs, err := BuildMessages(p, nil, "talk")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, RoleSystem, msgs[0].Role)
	require.Equal(t, Message{Role: RoleUser, Content: "talk"}, msgs[1])
}

func TestBuildMessagesRejectsBlankInput(t *testing.T) {
	_, err := BuildMessages(testPersona(), nil, "  \n")
	require.True(t, errors.Is(err, ErrEmptyInput))
}

func TestBuildMessagesDoesNotMutateHistory(t *testing.T) {
	history := []dialogue.Turn{dialogue.NewOperatorTurn("a")}
	before := history[0]
	_, err := BuildMessages(testPersona(), history, "b")
	require.NoError(t, err)
	require.Equal(t, before, history[0])
}

func TestBuildRequestCarriesModelAndFormat(t *testing.T) {
	p := testPersona()
	req, err := buildRequest(p, nil, "hi", "json")
	require.NoError(t, err)
	require.Equal(t, "llama3.1", req.Model)
	require.False(t, req.Stream)
	require.Equal(t, "json", req.Format)
}
