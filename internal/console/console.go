// Package console is the caller side of an interrogation: it owns the
// transcript and the current emotional state and drives one exchange at a time.
package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/uplink"
)

// ErrBusy is returned when Send is called while another exchange is in flight.
var ErrBusy = errors.New("an exchange is already in flight")

// Exchanger runs one persona turn. *uplink.Service implements it.
type Exchanger interface {
	Exchange(ctx context.Context, p persona.Persona, history []dialogue.Turn, input string) (uplink.Result, error)
}

type Console struct {
	persona   persona.Persona
	exchanger Exchanger
	busy      atomic.Bool

	mu         sync.Mutex
	transcript *dialogue.Transcript
}

func New(p persona.Persona, exchanger Exchanger) *Console {
	return &Console{
		persona:    p,
		exchanger:  exchanger,
		transcript: dialogue.NewTranscript(),
	}
}

func (c *Console) Persona() persona.Persona { return c.persona }

// Send records the operator input and asks the persona to answer it. The
// operator turn stays in the transcript even when the exchange fails; the
// current state only moves on success.
func (c *Console) Send(ctx context.Context, input string) (uplink.Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return uplink.Result{}, ErrBusy
	}
	defer c.busy.Store(false)

	if strings.TrimSpace(input) == "" {
		return uplink.Result{}, uplink.ErrEmptyInput
	}

	c.mu.Lock()
	history := c.transcript.Turns()
	err := c.transcript.Append(dialogue.NewOperatorTurn(input))
	c.mu.Unlock()
	if err != nil {
		return uplink.Result{}, err
	}

	result, err := c.exchanger.Exchange(ctx, c.persona, history, input)
	if err != nil {
		return uplink.Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transcript.Append(result.Turn()); err != nil {
		return uplink.Result{}, err
	}
	return result, nil
}

// Current is the latest persona state, or the persona baseline before the
// first successful reply.
func (c *Console) Current() persona.EmotionalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.CurrentState(c.persona.Baseline)
}

func (c *Console) Transcript() []dialogue.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Turns()
}

// Reset starts a fresh interrogation with the same persona.
func (c *Console) Reset() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	c.transcript = dialogue.NewTranscript()
	c.mu.Unlock()
	return nil
}
