package uplink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ent0n29/uplink/internal/persona"
)

// Field names of the payload the model is instructed to emit.
const (
	FieldReply        = "reply"
	FieldPsychProfile = "psych_profile"
	FieldStability    = "stability"
	FieldAggression   = "aggression"
	FieldDeception    = "deception"
)

// Payload is a validated model payload with its state already clamped.
type Payload struct {
	Reply string
	State persona.EmotionalState
}

// DecodePayload decodes an extracted fragment into an opaque value and validates it.
func DecodePayload(fragment string) (Payload, error) {
	dec := json.NewDecoder(strings.NewReader(fragment))
	// Numbers stay textual so magnitudes beyond float64 still clamp.
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrSignalCorrupted, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Payload{}, fmt.Errorf("%w: trailing data after payload", ErrSignalCorrupted)
	}
	return ValidatePayload(v)
}

// ValidatePayload checks the shape of a decoded value field by field before
// anything is trusted, then clamps the axes and derives the critical flag.
func ValidatePayload(v any) (Payload, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return Payload{}, invalidPayload("top-level value is not an object")
	}
	reply, ok := obj[FieldReply].(string)
	if !ok {
		return Payload{}, invalidPayload("%s is missing or not a string", FieldReply)
	}
	profile, ok := obj[FieldPsychProfile].(map[string]any)
	if !ok || profile == nil {
		return Payload{}, invalidPayload("%s is missing or not an object", FieldPsychProfile)
	}

	var axes [3]float64
	for i, name := range []string{FieldStability, FieldAggression, FieldDeception} {
		n, ok := axisValue(profile[name])
		if !ok {
			return Payload{}, invalidPayload("%s.%s is missing or not a number", FieldPsychProfile, name)
		}
		axes[i] = n
	}

	return Payload{
		Reply: reply,
		State: persona.NewEmotionalState(axes[0], axes[1], axes[2]),
	}, nil
}

// axisValue accepts JSON numbers only. Out-of-range magnitudes come back as
// ±Inf and are left to clamping.
func axisValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Parse runs extraction, decoding and validation on raw model text.
func Parse(raw string) (Payload, error) {
	fragment, err := Extract(raw)
	if err != nil {
		return Payload{}, err
	}
	return DecodePayload(fragment)
}
