package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/utakatalp/volley-simulator/internal/api"
	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/prediction"
	"github.com/utakatalp/volley-simulator/internal/ratelimit"
	"github.com/utakatalp/volley-simulator/internal/results"
	"github.com/utakatalp/volley-simulator/internal/scenario"
	"github.com/utakatalp/volley-simulator/internal/scrape"
	"github.com/utakatalp/volley-simulator/internal/store"
	"github.com/utakatalp/volley-simulator/internal/testutil"
)

const (
	adminToken = "admin-secret"
	cronSecret = "cron-secret"
	alice      = "6f1d9a3e-2b4c-4d7e-9f10-1a2b3c4d5e6f"
	bob        = "0b7c5d21-8e9f-4a0b-b1c2-d3e4f5a6b7c8"
)

type stubFetcher struct{ page *scrape.Page }

func (f stubFetcher) Fetch(context.Context, string, string) (*scrape.Page, error) {
	return f.page, nil
}

type testServer struct {
	handler http.Handler
	store   *store.Store
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.App.AdminToken = adminToken
	cfg.App.CronSecret = cronSecret
	cfg.App.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Simulation.Trials = 500
	cfg.Simulation.Workers = 2
	cfg.Leagues = []config.LeagueConfig{
		{ID: "vsl", Name: "Sultanlar Ligi", Groups: []string{"VSL"}, PlayoffSpots: 2, RelegationSpots: 1, SourceURL: "http://tvf.test/vsl"},
	}

	st := testutil.NewTestStore(t)
	teams := []league.Team{
		{Name: "VakıfBank", GroupName: "VSL"},
		{Name: "Eczacıbaşı Dynavit", GroupName: "VSL"},
		{Name: "Fenerbahçe Medicana", GroupName: "VSL"},
	}
	matches := []league.Match{
		{HomeTeam: "VakıfBank", AwayTeam: "Eczacıbaşı Dynavit", GroupName: "VSL", Week: 1, IsPlayed: true, ResultScore: "3-1"},
		{HomeTeam: "Fenerbahçe Medicana", AwayTeam: "VakıfBank", GroupName: "VSL", Week: 2},
		{HomeTeam: "Eczacıbaşı Dynavit", AwayTeam: "Fenerbahçe Medicana", GroupName: "VSL", Week: 3},
	}
	if err := st.ImportLeague(context.Background(), "vsl", teams, matches); err != nil {
		t.Fatalf("import: %v", err)
	}

	fetcher := stubFetcher{page: &scrape.Page{Fixture: []league.Match{
		{HomeTeam: "Eczacıbaşı Dynavit", AwayTeam: "Fenerbahçe Medicana", IsPlayed: true, ResultScore: "3-2"},
	}}}
	srv := api.NewServer(api.Options{
		Config:      cfg,
		Scenarios:   scenario.NewService(cfg, st, st),
		Fixtures:    st,
		Predictions: st,
		Stats:       st,
		Results:     results.NewSyncer(cfg, st, fetcher, nil),
		Limiter:     limiter,
	})
	return &testServer{handler: srv.Handler(), store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func user(id string) map[string]string { return map[string]string{api.UserHeader: id} }

func TestHealthAndLeagues(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("health: %d %v", rec.Code, rec.Header())
	}

	rec = ts.do(t, http.MethodGet, "/api/leagues", nil, nil)
	var body struct {
		Leagues []struct {
			ID           string `json:"id"`
			PlayoffSpots int    `json:"playoffSpots"`
		} `json:"leagues"`
	}
	decode(t, rec, &body)
	if len(body.Leagues) != 1 || body.Leagues[0].ID != "vsl" || body.Leagues[0].PlayoffSpots != 2 {
		t.Errorf("leagues = %+v", body)
	}

	rec = ts.do(t, http.MethodGet, "/api/leagues/vsl/data", nil, nil)
	var data struct {
		Groups  []string       `json:"groups"`
		Teams   []league.Team  `json:"teams"`
		Fixture []league.Match `json:"fixture"`
		Tables  []league.Table `json:"tables"`
	}
	decode(t, rec, &data)
	if len(data.Teams) != 3 || len(data.Fixture) != 3 || len(data.Groups) != 1 || len(data.Tables) != 1 {
		t.Errorf("data = %+v", data)
	}

	if rec := ts.do(t, http.MethodGet, "/api/leagues/nope/data", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown league status %d", rec.Code)
	}
}

func TestStandingsAndCalculate(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/leagues/vsl/groups/VSL/standings", nil, nil)
	var table league.Table
	decode(t, rec, &table)
	if len(table.Rows) != 3 || table.Rows[0].Name != "VakıfBank" || table.Rows[0].Points != 3 {
		t.Fatalf("standings = %+v", table)
	}

	rec = ts.do(t, http.MethodPost, "/api/leagues/vsl/groups/VSL/calculate", map[string]any{
		"overrides": map[string]string{league.MatchKey("Fenerbahçe Medicana", "VakıfBank"): "3-0"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calculate: %d %s", rec.Code, rec.Body.String())
	}
	var res scenario.Result
	decode(t, rec, &res)
	if res.Table.Rows[0].Name != "Fenerbahçe Medicana" || res.Remaining != 1 {
		t.Errorf("calculate = %+v", res)
	}
	for _, c := range res.Changes {
		if c.Name == "Fenerbahçe Medicana" && c.RankDiff != 2 {
			t.Errorf("Fenerbahçe moved %d places", c.RankDiff)
		}
	}

	rec = ts.do(t, http.MethodPost, "/api/leagues/vsl/groups/VSL/calculate", map[string]any{
		"overrides": map[string]string{"x|||y": "3-3"},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad override status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/leagues/vsl/groups/Nope/standings", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown group status %d", rec.Code)
	}
}

func TestOdds(t *testing.T) {
	ts := newTestServer(t, nil)
	path := "/api/leagues/vsl/groups/VSL/odds"

	seed := int64(7)
	req := map[string]any{"team": "VakıfBank", "seed": seed}
	first := ts.do(t, http.MethodPost, path, req, nil)
	second := ts.do(t, http.MethodPost, path, req, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("odds: %d %s", first.Code, first.Body.String())
	}
	var a, b league.Odds
	decode(t, first, &a)
	decode(t, second, &b)
	if a.Status != league.StatusOK || a.Trials != 500 {
		t.Errorf("odds = %+v", a)
	}
	if a.Championship != b.Championship || a.Relegation != b.Relegation {
		t.Errorf("same seed gave %v and %v", a.Championship, b.Championship)
	}

	if rec := ts.do(t, http.MethodPost, path, map[string]any{"team": "Galatasaray"}, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown team status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, path, map[string]any{}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing team status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, path, map[string]any{"team": "VakıfBank", "bogus": 1}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status %d", rec.Code)
	}
}

func TestPredictAll(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/leagues/vsl/groups/VSL/predict-all", map[string]any{"seed": 1}, nil)
	var body struct {
		Overrides league.Overrides `json:"overrides"`
	}
	decode(t, rec, &body)
	if len(body.Overrides) != 2 {
		t.Errorf("overrides = %v", body.Overrides)
	}
}

func TestScenarioEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	path := "/api/scenarios/vsl/VSL"
	overrides := map[string]any{"overrides": map[string]string{league.MatchKey("Eczacıbaşı Dynavit", "Fenerbahçe Medicana"): "1-3"}}

	if rec := ts.do(t, http.MethodGet, path, nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, path, nil, user("not-a-uuid")); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed user status %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodPut, path, overrides, user(alice)); rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	saved := func(id string) league.Overrides {
		t.Helper()
		rec := ts.do(t, http.MethodGet, path, nil, user(id))
		var body struct {
			Overrides league.Overrides `json:"overrides"`
		}
		decode(t, rec, &body)
		return body.Overrides
	}
	if got := saved(alice); len(got) != 1 {
		t.Errorf("saved = %v", got)
	}
	if got := saved(bob); len(got) != 0 {
		t.Errorf("bob sees %v", got)
	}

	if rec := ts.do(t, http.MethodDelete, path, nil, user(alice)); rec.Code != http.StatusNoContent {
		t.Errorf("reset status %d", rec.Code)
	}
	if got := saved(alice); len(got) != 0 {
		t.Errorf("after reset = %v", got)
	}
}

func TestPredictionGame(t *testing.T) {
	ts := newTestServer(t, nil)

	preds := []map[string]string{
		{"league": "vsl", "groupName": "VSL", "homeTeam": "Fenerbahçe Medicana", "awayTeam": "VakıfBank", "predictedScore": "3-1"},
		{"league": "vsl", "groupName": "VSL", "homeTeam": "Eczacıbaşı Dynavit", "awayTeam": "Fenerbahçe Medicana", "predictedScore": "3-2"},
	}
	rec := ts.do(t, http.MethodPost, "/api/predictions", preds, user(alice))
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodPost, "/api/predictions", preds[0], user(bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("save single: %d %s", rec.Code, rec.Body.String())
	}
	played := map[string]string{"league": "vsl", "homeTeam": "VakıfBank", "awayTeam": "Eczacıbaşı Dynavit", "predictedScore": "3-0"}
	if rec := ts.do(t, http.MethodPost, "/api/predictions", played, user(alice)); rec.Code != http.StatusConflict {
		t.Errorf("played match status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/predictions?league=vsl", nil, user(alice))
	var list struct {
		Predictions []prediction.Prediction `json:"predictions"`
	}
	decode(t, rec, &list)
	if len(list.Predictions) != 2 {
		t.Fatalf("alice has %d predictions", len(list.Predictions))
	}

	// admin result for the first open match
	fixtures, err := ts.store.Fixtures(context.Background(), "vsl", "VSL")
	if err != nil {
		t.Fatal(err)
	}
	resultPath := "/api/admin/matches/" + strconv.Itoa(fixtures[1].ID) + "/result"
	if rec := ts.do(t, http.MethodPost, resultPath, map[string]string{"score": "3-1"}, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("admin without token status %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, resultPath, map[string]string{"score": "3-1"}, map[string]string{"X-Admin-Token": adminToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin result: %d %s", rec.Code, rec.Body.String())
	}
	var setRes struct {
		Scored int `json:"scoredPredictions"`
	}
	decode(t, rec, &setRes)
	if setRes.Scored != 2 {
		t.Errorf("scored %d predictions", setRes.Scored)
	}

	// the cron sync scrapes the last match
	if rec := ts.do(t, http.MethodPost, "/api/results/sync", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("sync without secret status %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/results/sync", nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	var sum struct {
		SavedResults      int `json:"savedResults"`
		ScoredPredictions int `json:"scoredPredictions"`
	}
	decode(t, rec, &sum)
	if sum.SavedResults != 1 || sum.ScoredPredictions != 1 {
		t.Errorf("sync summary = %+v", sum)
	}

	rec = ts.do(t, http.MethodGet, "/api/leaderboard?type=total", nil, user(bob))
	var board prediction.Leaderboard
	decode(t, rec, &board)
	if len(board.Entries) != 2 {
		t.Fatalf("leaderboard = %+v", board)
	}
	// alice: 15 exact + 15 exact, bob: 15 exact
	if board.Entries[0].UserID != alice || board.Entries[0].Points != 30 {
		t.Errorf("leader = %+v", board.Entries[0])
	}
	if board.User == nil || board.User.UserID != bob || board.User.Rank != 2 {
		t.Errorf("user entry = %+v", board.User)
	}

	if rec := ts.do(t, http.MethodGet, "/api/leaderboard?type=yearly", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad period status %d", rec.Code)
	}
	// scored predictions cannot be deleted
	if rec := ts.do(t, http.MethodDelete, "/api/predictions?league=vsl&home=Fenerbahçe+Medicana&away=VakıfBank", nil, user(alice)); rec.Code != http.StatusNotFound {
		t.Errorf("delete scored status %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodGet, "/api/admin/stats", nil, user(alice)); rec.Code != http.StatusUnauthorized {
		t.Errorf("stats without token status %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/admin/stats", nil, map[string]string{"X-Admin-Token": adminToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rec.Code, rec.Body.String())
	}
	var stats struct {
		Users       int `json:"users"`
		Predictions int `json:"predictions"`
		Results     int `json:"results"`
	}
	decode(t, rec, &stats)
	if stats.Users != 2 || stats.Predictions != 3 || stats.Results != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSyncPostedResults(t *testing.T) {
	ts := newTestServer(t, nil)
	body := map[string]any{"results": []map[string]string{
		{"league": "vsl", "homeTeam": "Fenerbahçe Medicana", "awayTeam": "VakıfBank", "resultScore": "0-3"},
	}}
	rec := ts.do(t, http.MethodPost, "/api/results/sync", body, map[string]string{"Authorization": "Bearer " + cronSecret})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: %d %s", rec.Code, rec.Body.String())
	}
	var got league.Table
	decode(t, ts.do(t, http.MethodGet, "/api/leagues/vsl/groups/VSL/standings", nil, nil), &got)
	if got.Rows[0].Name != "VakıfBank" || got.Rows[0].Points != 6 {
		t.Errorf("leader after sync = %+v", got.Rows[0])
	}

	bad := map[string]any{"results": []map[string]string{{"homeTeam": "A", "awayTeam": "B", "resultScore": "3-0"}}}
	if rec := ts.do(t, http.MethodPost, "/api/results/sync", bad, map[string]string{"Authorization": "Bearer " + cronSecret}); rec.Code != http.StatusBadRequest {
		t.Errorf("result without league status %d", rec.Code)
	}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{
		Requests: 2,
		Window:   time.Minute,
		Clock:    fixedClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	defer limiter.Close()
	ts := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		if rec := ts.do(t, http.MethodGet, "/api/leagues", nil, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status %d", i+1, rec.Code)
		}
	}
	rec := ts.do(t, http.MethodGet, "/api/leagues", nil, nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Errorf("third request: %d retry %q", rec.Code, rec.Header().Get("Retry-After"))
	}
	// health is outside the limited surface
	if rec := ts.do(t, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("health status %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/leagues", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}
