package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/utakatalp/volley-simulator/internal/prediction"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
)

type predictionInput struct {
	League         string `json:"league"`
	GroupName      string `json:"groupName"`
	HomeTeam       string `json:"homeTeam"`
	AwayTeam       string `json:"awayTeam"`
	MatchDate      string `json:"matchDate,omitempty"`
	PredictedScore string `json:"predictedScore"`
}

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	preds, err := s.predictions.Predictions(r.Context(), userID, q.Get("league"), q.Get("group"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"predictions": preds})
}

// handleSavePredictions accepts a single prediction or an array of them.
func (s *Server) handleSavePredictions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var inputs []predictionInput
	switch {
	case len(raw) == 0:
		respondError(w, r, badRequest("no predictions provided"))
		return
	case raw[0] == '[':
		err = json.Unmarshal(raw, &inputs)
	default:
		var single predictionInput
		err = json.Unmarshal(raw, &single)
		inputs = []predictionInput{single}
	}
	if err != nil {
		respondError(w, r, badRequest("invalid JSON body"))
		return
	}
	if len(inputs) == 0 {
		respondError(w, r, badRequest("no predictions provided"))
		return
	}

	saved := make([]prediction.Prediction, 0, len(inputs))
	for _, in := range inputs {
		p, err := s.predictions.SavePrediction(r.Context(), prediction.Prediction{
			UserID:         userID,
			League:         in.League,
			GroupName:      in.GroupName,
			HomeTeam:       in.HomeTeam,
			AwayTeam:       in.AwayTeam,
			MatchDate:      in.MatchDate,
			PredictedScore: in.PredictedScore,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		saved = append(saved, p)
	}
	respond(w, r, http.StatusOK, map[string]any{"saved": len(saved), "predictions": saved})
}

func (s *Server) handleDeletePrediction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	leagueID, home, away := q.Get("league"), q.Get("home"), q.Get("away")
	if leagueID == "" || home == "" || away == "" {
		respondError(w, r, badRequest("league, home and away are required"))
		return
	}
	if err := s.predictions.DeletePrediction(r.Context(), userID, leagueID, home, away); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := prediction.ParsePeriod(q.Get("type"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit := defaultLeaderboardLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, badRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	userID, _ := UserFromContext(r.Context())

	board, err := s.predictions.Leaderboard(r.Context(), period, limit, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, board)
}
