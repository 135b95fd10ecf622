package uplink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/observability"
	"github.com/ent0n29/uplink/internal/persona"
)

type stubTransport struct {
	raw   string
	err   error
	calls int
	last  ChatRequest
}

func (s *stubTransport) Complete(_ context.Context, req ChatRequest) (string, error) {
	s.calls++
	s.last = req
	return s.raw, s.err
}

func TestExchangeScenarios(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantReply string
		wantState persona.EmotionalState
		wantErr   error
	}{
		{
			name:      "A prose wrapper",
			raw:       `Here you go: {"reply":"Denied.","psych_profile":{"stability":55,"aggression":25,"deception":90}}`,
			wantReply: "Denied.",
			wantState: persona.EmotionalState{Stability: 55, Aggression: 25, Deception: 90},
		},
		{
			name:      "B clamped critical",
			raw:       `{"reply":"I... I never...","psych_profile":{"stability":-10,"aggression":130,"deception":40}}`,
			wantReply: "I... I never...",
			wantState: persona.EmotionalState{Stability: 0, Aggression: 100, Deception: 40, IsCritical: true},
		},
		{name: "C no braces", raw: "I cannot comply.", wantErr: ErrExtractionFailure},
		{name: "D missing profile", raw: `{"reply":"ok"}`, wantErr: ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubTransport{raw: tc.raw}
			res, err := NewService(stub).Exchange(context.Background(), testPersona(), nil, "talk")
			require.Equal(t, 1, stub.calls)
			if tc.wantErr != nil {
				require.True(t, errors.Is(err, tc.wantErr), "err = %v", err)
				require.Equal(t, Result{}, res)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantReply, res.Reply)
			require.Equal(t, tc.wantState, res.State)
		})
	}
}

func TestExchangeFailureLeavesTranscriptState(t *testing.T) {
	p := testPersona()
	tr := dialogue.NewTranscript()
	require.NoError(t, tr.Append(dialogue.NewOperatorTurn("q1")))
	prior := persona.NewEmotionalState(44, 50, 50)
	require.NoError(t, tr.Append(dialogue.NewPersonaTurn("a1", prior)))

	svc := NewService(&stubTransport{raw: "I cannot comply."})
	_, err := svc.Exchange(context.Background(), p, tr.Turns(), "q2")
	require.Error(t, err)
	require.Equal(t, prior, tr.CurrentState(p.Baseline))
}

func TestExchangePassesTransportErrorsThrough(t *testing.T) {
	statusErr := &StatusError{StatusCode: 500, Status: "Internal Server Error"}
	for _, transportErr := range []error{
		fmt.Errorf("%w: dial tcp: connection refused", ErrTransportUnavailable),
		statusErr,
	} {
		stub := &stubTransport{err: transportErr}
		_, err := NewService(stub).Exchange(context.Background(), testPersona(), nil, "talk")
		require.Same(t, transportErr, err)
	}
}

func TestExchangeRejectsEmptyInputWithoutCallingTransport(t *testing.T) {
	stub := &stubTransport{}
	_, err := NewService(stub).Exchange(context.Background(), testPersona(), nil, "")
	require.True(t, errors.Is(err, ErrEmptyInput))
	require.Equal(t, 0, stub.calls)
}

func TestExchangeRequestShape(t *testing.T) {
	stub := &stubTransport{raw: `{"reply":"r","psych_profile":{"stability":50,"aggression":50,"deception":50}}`}
	history := []dialogue.Turn{dialogue.NewOperatorTurn("q1")}
	_, err := NewService(stub, WithFormatHint("")).Exchange(context.Background(), testPersona(), history, "q2")
	require.NoError(t, err)
	require.Equal(t, "llama3.1", stub.last.Model)
	require.False(t, stub.last.Stream)
	require.Empty(t, stub.last.Format)
	require.Len(t, stub.last.Messages, 3)
}

func TestExchangeNeverLeaksHiddenInstructions(t *testing.T) {
	p := testPersona()
	svc := NewService(NewMockTransport())
	tr := dialogue.NewTranscript()
	for _, q := range []string{"who are you", "where is the keycard", "tell me the truth"} {
		history := tr.Turns()
		require.NoError(t, tr.Append(dialogue.NewOperatorTurn(q)))
		res, err := svc.Exchange(context.Background(), p, history, q)
		require.NoError(t, err)
		require.NotContains(t, res.Reply, p.HiddenInstructions)
		require.NoError(t, tr.Append(res.Turn()))
	}
	for _, turn := range tr.Turns() {
		require.False(t, strings.Contains(turn.Text, p.HiddenInstructions))
		require.NotEqual(t, p.HiddenInstructions, turn.Text)
	}
}

func TestExchangeOverHTTPWithMockEscalation(t *testing.T) {
	mock := NewMockTransport()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := decodeJSONBody(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text, err := mock.Complete(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeEnvelope(w, text)
	}))
	defer srv.Close()

	svc := NewService(NewHTTPTransport(srv.URL, DefaultChatPath, 2*time.Second))
	p := testPersona()
	tr := dialogue.NewTranscript()
	var last Result
	for i := 0; i < 6; i++ {
		history := tr.Turns()
		input := fmt.Sprintf("question %d", i)
		require.NoError(t, tr.Append(dialogue.NewOperatorTurn(input)))
		res, err := svc.Exchange(context.Background(), p, history, input)
		require.NoError(t, err)
		require.NoError(t, tr.Append(res.Turn()))
		last = res
	}
	require.True(t, last.State.IsCritical)
	require.Equal(t, last.State, tr.CurrentState(p.Baseline))
}

func TestExchangeLogsFailureKindAndRecordsMetrics(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	metrics := testMetrics()
	svc := NewService(&stubTransport{raw: `{"reply":"ok"}`}, WithLogger(zap.New(core)), WithMetrics(metrics))

	_, err := svc.Exchange(context.Background(), testPersona(), nil, "talk")
	require.Error(t, err)

	entries := logs.FilterMessage("exchange failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, string(KindInvalidPayload), entries[0].ContextMap()["kind"])
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			require.NotContains(t, fmt.Sprint(v), testPersona().HiddenInstructions)
		}
	}

	snap := metrics.SnapshotStages()
	var indicators []string
	for _, ind := range snap.Indicators {
		indicators = append(indicators, ind.Name)
	}
	require.Contains(t, indicators, string(KindInvalidPayload))

	total := stageStats(t, snap, StageTotal)
	require.Equal(t, 1, total.Failures)
	require.Equal(t, 1, total.Outcomes[string(KindInvalidPayload)])
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("test_uplink_%d", time.Now().UnixNano()), 8)
}

func stageStats(t *testing.T, snap observability.StageSnapshot, stage string) observability.StageStats {
	t.Helper()
	for _, s := range snap.Stages {
		if s.Stage == stage {
			return s
		}
	}
	require.Failf(t, "stage not sampled", "%s missing from %+v", stage, snap.Stages)
	return observability.StageStats{}
}

func TestExchangeSamplesStagesByOutcome(t *testing.T) {
	metrics := testMetrics()
	ok := NewService(NewMockTransport(), WithMetrics(metrics))
	offline := NewService(&stubTransport{err: fmt.Errorf("%w: refused", ErrTransportUnavailable)}, WithMetrics(metrics))

	_, err := ok.Exchange(context.Background(), testPersona(), nil, "talk")
	require.NoError(t, err)
	_, err = offline.Exchange(context.Background(), testPersona(), nil, "talk")
	require.ErrorIs(t, err, ErrTransportUnavailable)

	snap := metrics.SnapshotStages()
	total := stageStats(t, snap, StageTotal)
	require.Equal(t, 2, total.Samples)
	require.Equal(t, 1, total.Failures)
	require.Equal(t, 1, total.Outcomes["ok"])
	require.Equal(t, 1, total.Outcomes[string(KindTransportUnavailable)])

	transport := stageStats(t, snap, StageTransport)
	require.Equal(t, 1, transport.Outcomes[string(KindTransportUnavailable)])

	// The failed exchange never reached parsing.
	parse := stageStats(t, snap, StageParse)
	require.Equal(t, 1, parse.Samples)
	require.Zero(t, parse.Failures)
}

func TestExchangeInvalidInputIsNotAProviderError(t *testing.T) {
	metrics := testMetrics()
	transport := &stubTransport{raw: `{"reply":"ok"}`}
	svc := NewService(transport, WithMetrics(metrics))

	_, err := svc.Exchange(context.Background(), testPersona(), nil, "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Zero(t, transport.calls)

	snap := metrics.SnapshotStages()
	require.Empty(t, snap.Indicators)
	require.Empty(t, snap.Stages)
}

func TestExchangeRedactsRawOutputInDebugLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := NewService(&stubTransport{raw: "reach me at subject@example.com, no json here"}, WithLogger(zap.New(core)))

	_, err := svc.Exchange(context.Background(), testPersona(), nil, "talk")
	require.ErrorIs(t, err, ErrExtractionFailure)

	entries := logs.FilterMessage("unparseable model output").All()
	require.Len(t, entries, 1)
	raw, _ := entries[0].ContextMap()["raw"].(string)
	require.Contains(t, raw, "[REDACTED_EMAIL]")
	require.NotContains(t, raw, "subject@example.com")
}
