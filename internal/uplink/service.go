package uplink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/observability"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/policy"
)

const (
	StageTransport = "transport"
	StageParse     = "parse"
	StageTotal     = "exchange_total"

	DefaultFormatHint = "json"
)

// Result is a validated persona reply and the state snapshot that goes with it.
type Result struct {
	Reply string                 `json:"reply"`
	State persona.EmotionalState `json:"state"`
}

// Turn builds the persona turn the caller appends to its transcript.
func (r Result) Turn() dialogue.Turn {
	return dialogue.NewPersonaTurn(r.Reply, r.State)
}

// Service runs one interrogation turn against the inference engine. It keeps
// no per-conversation state; every call receives the full history.
type Service struct {
	transport Transport
	format    string
	logger    *zap.Logger
	metrics   *observability.Metrics
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFormatHint sets the output format requested from the engine. An empty
// hint omits the field.
func WithFormatHint(format string) Option {
	return func(s *Service) { s.format = format }
}

func NewService(transport Transport, opts ...Option) *Service {
	s := &Service{
		transport: transport,
		format:    DefaultFormatHint,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange sends the operator input with the prior history and returns the
// persona's validated reply. Failures are never replaced with default data.
func (s *Service) Exchange(ctx context.Context, p persona.Persona, history []dialogue.Turn, input string) (Result, error) {
	start := time.Now()
	log := s.logger.With(zap.String("persona", p.ID), zap.Int("history", len(history)))

	req, err := buildRequest(p, history, input, s.format)
	if err != nil {
		return Result{}, s.fail(log, start, err)
	}

	transportStart := time.Now()
	raw, err := s.transport.Complete(ctx, req)
	s.metrics.ObserveStage(StageTransport, outcomeOf(err), time.Since(transportStart))
	if err != nil {
		return Result{}, s.fail(log, start, err)
	}

	parseStart := time.Now()
	payload, err := Parse(raw)
	s.metrics.ObserveStage(StageParse, outcomeOf(err), time.Since(parseStart))
	if err != nil {
		log.Debug("unparseable model output", zap.String("raw", policy.LogText(raw)))
		return Result{}, s.fail(log, start, err)
	}

	elapsed := time.Since(start)
	s.metrics.ObserveStage(StageTotal, observability.OutcomeOK, elapsed)
	s.metrics.ObserveExchange(observability.OutcomeOK, elapsed)
	if payload.State.IsCritical {
		s.metrics.ObserveCritical()
	}
	log.Debug("exchange complete",
		zap.Int("stability", payload.State.Stability),
		zap.Int("aggression", payload.State.Aggression),
		zap.Int("deception", payload.State.Deception),
		zap.Bool("critical", payload.State.IsCritical),
		zap.Duration("elapsed", elapsed),
	)

	return Result{Reply: payload.Reply, State: payload.State}, nil
}

func (s *Service) fail(log *zap.Logger, start time.Time, err error) error {
	kind := KindOf(err)
	elapsed := time.Since(start)
	s.metrics.ObserveExchange(string(kind), elapsed)
	// Rejected input never reached the provider.
	if kind != KindInvalidInput {
		s.metrics.ObserveStage(StageTotal, string(kind), elapsed)
		s.metrics.ObserveFailure(string(kind))
	}
	log.Warn("exchange failed", zap.String("kind", string(kind)), zap.Error(err))
	return err
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeOK
	}
	return string(KindOf(err))
}
