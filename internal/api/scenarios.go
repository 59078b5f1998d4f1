package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// requireUser answers 401 when the request carries no user.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		log.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Msg("Anonymous request to user endpoint")
		respond(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return "", false
	}
	return userID, true
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	overrides, err := s.scenarios.SavedScenario(r.Context(), userID, vars["league"], vars["group"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, calculateRequest{Overrides: overrides})
}

func (s *Server) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := s.scenarios.SaveScenario(r.Context(), userID, vars["league"], vars["group"], req.Overrides); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"saved": len(req.Overrides)})
}

func (s *Server) handleResetScenario(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := s.scenarios.ResetScenario(r.Context(), userID, vars["league"], vars["group"]); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
