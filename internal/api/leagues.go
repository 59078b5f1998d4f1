package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/scenario"
)

type leagueInfo struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Groups          []string `json:"groups"`
	PlayoffSpots    int      `json:"playoffSpots"`
	RelegationSpots int      `json:"relegationSpots"`
}

func (s *Server) handleLeagues(w http.ResponseWriter, r *http.Request) {
	out := make([]leagueInfo, 0, len(s.cfg.Leagues))
	for _, lc := range s.cfg.Leagues {
		groups := lc.Groups
		if groups == nil {
			groups = []string{}
		}
		out = append(out, leagueInfo{
			ID:              lc.ID,
			Name:            lc.Name,
			Groups:          groups,
			PlayoffSpots:    lc.PlayoffSpots,
			RelegationSpots: lc.RelegationSpots,
		})
	}
	respond(w, r, http.StatusOK, map[string]any{"leagues": out})
}

type leagueData struct {
	League  string         `json:"league"`
	Groups  []string       `json:"groups"`
	Teams   []league.Team  `json:"teams"`
	Fixture []league.Match `json:"fixture"`
	Tables  []league.Table `json:"tables"`
}

func (s *Server) handleLeagueData(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["league"]
	groups, err := s.scenarios.Groups(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	teams, err := s.fixtures.Teams(r.Context(), id, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	matches, err := s.fixtures.Fixtures(r.Context(), id, "")
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, leagueData{
		League:  id,
		Groups:  groups,
		Teams:   teams,
		Fixture: matches,
		Tables:  league.CalculateGroups(teams, matches, nil),
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.scenarios.Groups(r.Context(), mux.Vars(r)["league"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, err := s.scenarios.Standings(r.Context(), vars["league"], vars["group"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, table)
}

type calculateRequest struct {
	Overrides league.Overrides `json:"overrides"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	res, err := s.scenarios.Scenario(r.Context(), vars["league"], vars["group"], req.Overrides)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, res)
}

type oddsRequest struct {
	Team      string           `json:"team"`
	Overrides league.Overrides `json:"overrides"`
	Seed      *int64           `json:"seed,omitempty"`
	Trials    int              `json:"trials,omitempty"`
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	var req oddsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Team == "" {
		respondError(w, r, badRequest("team is required"))
		return
	}
	if req.Trials < 0 {
		respondError(w, r, league.ErrInvalidTrials)
		return
	}
	vars := mux.Vars(r)
	odds, err := s.scenarios.Odds(r.Context(), vars["league"], vars["group"], scenario.OddsRequest{
		Team:      req.Team,
		Overrides: req.Overrides,
		Seed:      req.Seed,
		Trials:    req.Trials,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, odds)
}

type predictAllRequest struct {
	Overrides league.Overrides `json:"overrides"`
	Seed      *int64           `json:"seed,omitempty"`
}

func (s *Server) handlePredictAll(w http.ResponseWriter, r *http.Request) {
	var req predictAllRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	overrides, err := s.scenarios.PredictAll(r.Context(), vars["league"], vars["group"], req.Overrides, req.Seed)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, calculateRequest{Overrides: overrides})
}
