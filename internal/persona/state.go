package persona

import "math"

const (
	MinAxis = 0
	MaxAxis = 100

	// CriticalThreshold is the stability value below which a state is critical.
	CriticalThreshold = 30
)

// EmotionalState is the three-axis psych profile attached to persona turns.
// Values are only produced by NewEmotionalState, which keeps every axis inside
// [MinAxis, MaxAxis] and derives IsCritical from the clamped stability.
type EmotionalState struct {
	Stability  int  `json:"stability" yaml:"stability"`
	Aggression int  `json:"aggression" yaml:"aggression"`
	Deception  int  `json:"deception" yaml:"deception"`
	IsCritical bool `json:"is_critical" yaml:"-"`
}

// NewEmotionalState clamps each axis to [0,100], drops the fractional part and
// derives the critical flag. Flooring keeps Stability < CriticalThreshold
// equivalent to the clamped input being below it.
func NewEmotionalState(stability, aggression, deception float64) EmotionalState {
	s := clampAxis(stability)
	return EmotionalState{
		Stability:  s,
		Aggression: clampAxis(aggression),
		Deception:  clampAxis(deception),
		IsCritical: s < CriticalThreshold,
	}
}

// Normalize re-derives a state from its own axes. Use it on values that were
// decoded from untrusted input.
func (s EmotionalState) Normalize() EmotionalState {
	return NewEmotionalState(float64(s.Stability), float64(s.Aggression), float64(s.Deception))
}

// ClampAxis applies min/max clamping to a single axis value.
func ClampAxis(v float64) float64 {
	return math.Min(MaxAxis, math.Max(MinAxis, v))
}

func clampAxis(v float64) int {
	return int(math.Floor(ClampAxis(v)))
}
