package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/reliability"
)

type exchangeRequest struct {
	PersonaID string          `json:"persona_id"`
	History   []dialogue.Turn `json:"history"`
	Input     string          `json:"input"`
}

type exchangeResponse struct {
	Turn  dialogue.Turn          `json:"turn"`
	State persona.EmotionalState `json:"state"`
}

// requestError is a caller mistake detected before the engine is contacted.
type requestError struct {
	status int
	code   string
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	resp, err := s.exchange(r.Context(), req)
	if err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			respondError(w, reqErr.status, reqErr.code, reqErr.Error())
			return
		}
		failure := reliability.Classify(err)
		respondJSON(w, failure.HTTPStatus(), errorResponse{
			Error:      failure.Message,
			Code:       failure.Code,
			Kind:       string(failure.Kind),
			StatusCode: failure.StatusCode,
			Retryable:  failure.Retryable,
		})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// exchange resolves the persona, validates the caller-owned history and runs
// one turn. It is shared by the REST and websocket surfaces.
func (s *Server) exchange(ctx context.Context, req exchangeRequest) (exchangeResponse, error) {
	personaID := strings.TrimSpace(req.PersonaID)
	if personaID == "" {
		personaID = s.defaultPersona
	}
	p, err := s.catalog.Get(personaID)
	if err != nil {
		return exchangeResponse{}, &requestError{status: http.StatusNotFound, code: "persona_not_found", err: err}
	}

	transcript, err := dialogue.FromTurns(req.History)
	if err != nil {
		return exchangeResponse{}, &requestError{
			status: http.StatusBadRequest,
			code:   "invalid_history",
			err:    fmt.Errorf("invalid history: %w", err),
		}
	}

	if s.exchanger == nil {
		return exchangeResponse{}, errors.New("uplink service is not configured")
	}
	result, err := s.exchanger.Exchange(ctx, p, transcript.Turns(), req.Input)
	if err != nil {
		return exchangeResponse{}, err
	}
	return exchangeResponse{Turn: result.Turn(), State: result.State}, nil
}
