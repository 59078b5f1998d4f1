package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/results"
)

const adminHeader = "X-Admin-Token"

// secretMatches compares in constant time. An unset secret never matches.
func secretMatches(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !secretMatches(r.Header.Get(adminHeader), s.cfg.App.AdminToken) {
		log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Admin access denied")
		respond(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return false
	}
	return true
}

func (s *Server) requireCron(w http.ResponseWriter, r *http.Request) bool {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !secretMatches(token, s.cfg.App.CronSecret) {
		log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Cron access denied")
		respond(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return false
	}
	return true
}

type setResultRequest struct {
	Score string `json:"score"`
}

func (s *Server) handleSetResult(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, badRequest("invalid match id"))
		return
	}
	var req setResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	m, scored, err := s.results.SetResult(r.Context(), id, req.Score)
	if err != nil {
		respondError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Int("match_id", id).
		Str("league", m.League).
		Str("score", m.ResultScore).
		Int("scored", scored).
		Msg("Match result set")
	respond(w, r, http.StatusOK, map[string]any{"match": m, "scoredPredictions": scored})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	if s.stats == nil {
		respond(w, r, http.StatusNotImplemented, errorBody{Error: "stats are not available"})
		return
	}
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, st)
}

type resultInput struct {
	League      string `json:"league"`
	GroupName   string `json:"groupName"`
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	MatchDate   string `json:"matchDate"`
	ResultScore string `json:"resultScore"`
}

type syncRequest struct {
	Results []resultInput `json:"results"`
}

// handleSyncResults records the posted results, or scrapes every league
// with a source page when the body is empty.
func (s *Server) handleSyncResults(w http.ResponseWriter, r *http.Request) {
	if !s.requireCron(w, r) {
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if len(raw) == 0 {
		reports, err := s.results.SyncAll(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("Results sync finished with errors")
		}
		respond(w, r, http.StatusOK, summarize(reports, err))
		return
	}

	var req syncRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respondError(w, r, badRequest("invalid JSON body"))
		return
	}
	byLeague := make(map[string][]league.Match)
	for _, in := range req.Results {
		if in.League == "" {
			respondError(w, r, badRequest("result %s-%s has no league", in.HomeTeam, in.AwayTeam))
			return
		}
		byLeague[in.League] = append(byLeague[in.League], league.Match{
			HomeTeam:    in.HomeTeam,
			AwayTeam:    in.AwayTeam,
			GroupName:   in.GroupName,
			MatchDate:   in.MatchDate,
			IsPlayed:    in.ResultScore != "",
			ResultScore: in.ResultScore,
		})
	}
	ids := make([]string, 0, len(byLeague))
	for id := range byLeague {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var reports []results.Report
	for _, id := range ids {
		rep, err := s.results.Apply(r.Context(), id, byLeague[id])
		if err != nil {
			respondError(w, r, err)
			return
		}
		reports = append(reports, rep)
	}
	respond(w, r, http.StatusOK, summarize(reports, nil))
}

type syncSummary struct {
	Reports           []results.Report `json:"reports"`
	SavedResults      int              `json:"savedResults"`
	ScoredPredictions int              `json:"scoredPredictions"`
	Error             string           `json:"error,omitempty"`
}

func summarize(reports []results.Report, err error) syncSummary {
	sum := syncSummary{Reports: reports}
	if sum.Reports == nil {
		sum.Reports = []results.Report{}
	}
	for _, rep := range reports {
		sum.SavedResults += len(rep.Updated)
		sum.ScoredPredictions += rep.Scored
	}
	if err != nil {
		sum.Error = err.Error()
	}
	return sum
}
