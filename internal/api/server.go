// Package api exposes the calculator, the odds estimator, saved scenarios
// and the prediction game over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/prediction"
	"github.com/utakatalp/volley-simulator/internal/ratelimit"
	"github.com/utakatalp/volley-simulator/internal/results"
	"github.com/utakatalp/volley-simulator/internal/scenario"
	"github.com/utakatalp/volley-simulator/internal/store"
)

type PredictionStore interface {
	SavePrediction(ctx context.Context, p prediction.Prediction) (prediction.Prediction, error)
	Predictions(ctx context.Context, userID, leagueID, group string) ([]prediction.Prediction, error)
	DeletePrediction(ctx context.Context, userID, leagueID, home, away string) error
	Leaderboard(ctx context.Context, period prediction.Period, limit int, userID string) (prediction.Leaderboard, error)
}

type ResultsRecorder interface {
	SyncAll(ctx context.Context) ([]results.Report, error)
	Apply(ctx context.Context, leagueID string, matches []league.Match) (results.Report, error)
	SetResult(ctx context.Context, id int, score string) (store.StoredMatch, int, error)
}

type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Options holds the dependencies of a Server. Limiter and Live may be nil.
type Options struct {
	Config      *config.Config
	Scenarios   *scenario.Service
	Fixtures    scenario.FixtureSource
	Predictions PredictionStore
	Results     ResultsRecorder
	Stats       StatsSource
	Limiter     *ratelimit.Limiter
	Live        http.Handler
}

type Server struct {
	cfg         *config.Config
	scenarios   *scenario.Service
	fixtures    scenario.FixtureSource
	predictions PredictionStore
	results     ResultsRecorder
	stats       StatsSource
	limiter     *ratelimit.Limiter
	live        http.Handler
}

func NewServer(opts Options) *Server {
	return &Server{
		cfg:         opts.Config,
		scenarios:   opts.Scenarios,
		fixtures:    opts.Fixtures,
		predictions: opts.Predictions,
		results:     opts.Results,
		stats:       opts.Stats,
		limiter:     opts.Limiter,
		live:        opts.Live,
	}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.live != nil {
		r.Handle("/api/live", s.live).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	if s.limiter != nil {
		api.Use(s.limiter.Middleware)
	}
	api.Use(WithUser)

	api.HandleFunc("/leagues", s.handleLeagues).Methods(http.MethodGet)
	api.HandleFunc("/leagues/{league}/data", s.handleLeagueData).Methods(http.MethodGet)
	api.HandleFunc("/leagues/{league}/groups", s.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/leagues/{league}/groups/{group}/standings", s.handleStandings).Methods(http.MethodGet)
	api.HandleFunc("/leagues/{league}/groups/{group}/calculate", s.handleCalculate).Methods(http.MethodPost)
	api.HandleFunc("/leagues/{league}/groups/{group}/odds", s.handleOdds).Methods(http.MethodPost)
	api.HandleFunc("/leagues/{league}/groups/{group}/predict-all", s.handlePredictAll).Methods(http.MethodPost)

	api.HandleFunc("/scenarios/{league}/{group}", s.handleGetScenario).Methods(http.MethodGet)
	api.HandleFunc("/scenarios/{league}/{group}", s.handleSaveScenario).Methods(http.MethodPut)
	api.HandleFunc("/scenarios/{league}/{group}", s.handleResetScenario).Methods(http.MethodDelete)

	api.HandleFunc("/predictions", s.handleListPredictions).Methods(http.MethodGet)
	api.HandleFunc("/predictions", s.handleSavePredictions).Methods(http.MethodPost)
	api.HandleFunc("/predictions", s.handleDeletePrediction).Methods(http.MethodDelete)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)

	api.HandleFunc("/admin/stats", s.handleAdminStats).Methods(http.MethodGet)
	api.HandleFunc("/admin/matches/{id:[0-9]+}/result", s.handleSetResult).Methods(http.MethodPost)
	api.HandleFunc("/results/sync", s.handleSyncResults).Methods(http.MethodPost)

	return s.wrap(r)
}

// wrap applies the middleware chain; the last entry runs first.
func (s *Server) wrap(h http.Handler) http.Handler {
	return ChainMiddleware(h,
		WithRecovery,
		WithLogging,
		WithRequestID,
		WithCORS(s.cfg.App.AllowedOrigins),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
