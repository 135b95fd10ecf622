package console

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/uplink"
)

type recordingExchanger struct {
	histories [][]dialogue.Turn
	results   []uplink.Result
	errs      []error
	block     chan struct{}
	entered   chan struct{}
}

func (r *recordingExchanger) Exchange(_ context.Context, _ persona.Persona, history []dialogue.Turn, _ string) (uplink.Result, error) {
	if r.entered != nil {
		close(r.entered)
	}
	if r.block != nil {
		<-r.block
	}
	i := len(r.histories)
	r.histories = append(r.histories, history)
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	if err != nil {
		return uplink.Result{}, err
	}
	return r.results[i], nil
}

func testPersona() persona.Persona {
	p, err := persona.BuiltinCatalog().Get("unit-734")
	if err != nil {
		panic(err)
	}
	return p
}

func TestSendAppendsBothTurnsOnSuccess(t *testing.T) {
	state := persona.NewEmotionalState(25, 60, 40)
	ex := &recordingExchanger{results: []uplink.Result{{Reply: "Fine. I was there.", State: state}}}
	c := New(testPersona(), ex)

	require.Equal(t, testPersona().Baseline, c.Current())

	res, err := c.Send(context.Background(), "Were you there?")
	require.NoError(t, err)
	require.Equal(t, "Fine. I was there.", res.Reply)
	require.True(t, res.State.IsCritical)

	turns := c.Transcript()
	require.Len(t, turns, 2)
	require.Equal(t, dialogue.RoleOperator, turns[0].Role)
	require.Equal(t, "Were you there?", turns[0].Text)
	require.Equal(t, dialogue.RolePersona, turns[1].Role)
	require.Equal(t, state, *turns[1].State)
	require.Equal(t, state, c.Current())

	// The exchange only saw the history prior to the new input.
	require.Empty(t, ex.histories[0])
}

func TestSendFailureKeepsOperatorTurnAndState(t *testing.T) {
	first := persona.NewEmotionalState(70, 20, 50)
	ex := &recordingExchanger{
		results: []uplink.Result{{Reply: "No comment.", State: first}, {}},
		errs:    []error{nil, fmt.Errorf("%w: connection refused", uplink.ErrTransportUnavailable)},
	}
	c := New(testPersona(), ex)

	_, err := c.Send(context.Background(), "Name?")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "Where were you?")
	require.ErrorIs(t, err, uplink.ErrTransportUnavailable)

	turns := c.Transcript()
	require.Len(t, turns, 3)
	require.Equal(t, dialogue.RoleOperator, turns[2].Role)
	require.Equal(t, first, c.Current())
	require.Len(t, ex.histories[1], 2)
}

func TestSendRejectsBlankInput(t *testing.T) {
	c := New(testPersona(), &recordingExchanger{})

	_, err := c.Send(context.Background(), "  \n")
	require.ErrorIs(t, err, uplink.ErrEmptyInput)
	require.Empty(t, c.Transcript())
}

func TestSendRejectsConcurrentExchange(t *testing.T) {
	ex := &recordingExchanger{
		results: []uplink.Result{{Reply: "...", State: persona.NewEmotionalState(60, 30, 30)}},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	c := New(testPersona(), ex)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first")
		done <- err
	}()
	<-ex.entered

	_, err := c.Send(context.Background(), "second")
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, c.Reset(), ErrBusy)

	close(ex.block)
	require.NoError(t, <-done)
	require.Len(t, c.Transcript(), 2)

	require.NoError(t, c.Reset())
	require.Empty(t, c.Transcript())
	require.Equal(t, testPersona().Baseline, c.Current())
}

func TestConsoleWithMockEngineReachesCritical(t *testing.T) {
	c := New(testPersona(), uplink.NewService(uplink.NewMockTransport()))

	var last uplink.Result
	for i := 0; i < 6; i++ {
		res, err := c.Send(context.Background(), fmt.Sprintf("question %d", i))
		require.NoError(t, err)
		last = res
	}
	require.True(t, last.State.IsCritical)
	require.Equal(t, 8, last.State.Stability)
	require.Len(t, c.Transcript(), 12)
}
