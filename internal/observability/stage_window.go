package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// OutcomeOK tags stage samples from exchanges that produced a persona turn.
// Any other outcome is a failure kind.
const OutcomeOK = "ok"

// StageStats summarizes one exchange stage over the window. Percentiles cover
// every sample; SuccessP95MS only those tagged OutcomeOK.
type StageStats struct {
	Stage        string         `json:"stage"`
	Samples      int            `json:"samples"`
	Failures     int            `json:"failures"`
	LastMS       float64        `json:"last_ms"`
	AvgMS        float64        `json:"avg_ms"`
	P50MS        float64        `json:"p50_ms"`
	P95MS        float64        `json:"p95_ms"`
	P99MS        float64        `json:"p99_ms"`
	SuccessP95MS float64        `json:"success_p95_ms"`
	TargetP95MS  float64        `json:"target_p95_ms,omitempty"`
	OverTarget   bool           `json:"over_target"`
	Outcomes     map[string]int `json:"outcomes"`
}

// Indicator counts discrete events such as critical states and failure kinds.
type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// p95 budgets per stage; a local model on CPU dominates the transport stage.
var stageTargetsMS = map[string]float64{
	"parse":          5,
	"transport":      15000,
	"exchange_total": 16000,
}

type stageSample struct {
	ms      float64
	outcome string
}

// sampleRing keeps the most recent samples of one stage.
type sampleRing struct {
	buf  []stageSample
	head int
	size int
}

func (r *sampleRing) push(s stageSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// ordered returns samples oldest first.
func (r *sampleRing) ordered() []stageSample {
	out := make([]stageSample, 0, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

type stageWindow struct {
	mu         sync.Mutex
	capacity   int
	rings      map[string]*sampleRing
	indicators map[string]int
}

func newStageWindow(capacity int) *stageWindow {
	if capacity <= 0 {
		capacity = 256
	}
	w := &stageWindow{capacity: capacity}
	w.clear()
	return w
}

func (w *stageWindow) clear() {
	w.rings = make(map[string]*sampleRing)
	w.indicators = make(map[string]int)
}

func (w *stageWindow) Observe(stage, outcome string, ms float64) {
	stage = strings.TrimSpace(stage)
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	if outcome = strings.TrimSpace(outcome); outcome == "" {
		outcome = OutcomeOK
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[stage]
	if !ok {
		r = &sampleRing{buf: make([]stageSample, w.capacity)}
		w.rings[stage] = r
	}
	r.push(stageSample{ms: ms, outcome: outcome})
}

func (w *stageWindow) ObserveIndicator(name string) {
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

// Reset drops every sample and indicator.
func (w *stageWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clear()
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, stage := range sortedKeys(w.rings) {
		samples := w.rings[stage].ordered()
		if len(samples) == 0 {
			continue
		}
		snap.Stages = append(snap.Stages, summarize(stage, samples))
	}
	for _, name := range sortedKeys(w.indicators) {
		snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: w.indicators[name]})
	}
	return snap
}

func summarize(stage string, samples []stageSample) StageStats {
	all := make([]float64, 0, len(samples))
	var ok []float64
	outcomes := make(map[string]int)
	sum := 0.0
	for _, s := range samples {
		all = append(all, s.ms)
		sum += s.ms
		outcomes[s.outcome]++
		if s.outcome == OutcomeOK {
			ok = append(ok, s.ms)
		}
	}
	sort.Float64s(all)
	sort.Float64s(ok)

	st := StageStats{
		Stage:        stage,
		Samples:      len(samples),
		Failures:     len(samples) - len(ok),
		LastMS:       round2(samples[len(samples)-1].ms),
		AvgMS:        round2(sum / float64(len(samples))),
		P50MS:        round2(nearestRank(all, 0.50)),
		P95MS:        round2(nearestRank(all, 0.95)),
		P99MS:        round2(nearestRank(all, 0.99)),
		SuccessP95MS: round2(nearestRank(ok, 0.95)),
		TargetP95MS:  stageTargetsMS[stage],
		Outcomes:     outcomes,
	}
	st.OverTarget = st.TargetP95MS > 0 && st.P95MS > st.TargetP95MS
	return st
}

// nearestRank returns the smallest sample with at least q of the set at or below it.
func nearestRank(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
