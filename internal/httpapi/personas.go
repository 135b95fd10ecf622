package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/uplink/internal/persona"
)

// Persona JSON never includes hidden instructions; see persona.Persona.
func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"personas":   s.catalog.List(),
		"default_id": s.defaultPersona,
	})
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(chi.URLParam(r, "id"))
	if errors.Is(err, persona.ErrNotFound) {
		respondError(w, http.StatusNotFound, "persona_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}
