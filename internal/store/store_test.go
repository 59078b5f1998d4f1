package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/prediction"
	"github.com/utakatalp/volley-simulator/internal/store"
	"github.com/utakatalp/volley-simulator/internal/testutil"
)

func seed(t *testing.T, s *store.Store) {
	t.Helper()
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
	if err := s.ImportLeague(context.Background(), "vsl", teams, matches); err != nil {
		t.Fatalf("import: %v", err)
	}
}

func TestImportAndRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s)
	ctx := context.Background()

	teams, err := s.Teams(ctx, "vsl", "VSL")
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 3 {
		t.Errorf("teams = %d", len(teams))
	}
	fixtures, err := s.Fixtures(ctx, "vsl", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(fixtures) != 3 || !fixtures[0].IsPlayed || fixtures[0].ResultScore != "3-1" || fixtures[1].IsPlayed {
		t.Fatalf("fixtures = %+v", fixtures)
	}
	groups, err := s.Groups(ctx, "vsl")
	if err != nil || len(groups) != 1 || groups[0] != "VSL" {
		t.Errorf("groups = %v, %v", groups, err)
	}
	if other, _ := s.Teams(ctx, "1lig", ""); len(other) != 0 {
		t.Errorf("teams leaked across leagues: %v", other)
	}

	// importing again with the result missing keeps the stored result
	if err := s.ImportLeague(ctx, "vsl", nil, []league.Match{
		{HomeTeam: "VakıfBank", AwayTeam: "Eczacıbaşı Dynavit", GroupName: "VSL", Week: 1, MatchDate: "2025-10-04"},
	}); err != nil {
		t.Fatal(err)
	}
	fixtures, _ = s.Fixtures(ctx, "vsl", "")
	if !fixtures[0].IsPlayed || fixtures[0].ResultScore != "3-1" || fixtures[0].MatchDate != "2025-10-04" {
		t.Errorf("re-import lost data: %+v", fixtures[0])
	}
}

func TestSetMatchResult(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s)
	ctx := context.Background()

	fixtures, _ := s.Fixtures(ctx, "vsl", "")
	open := fixtures[1]

	sm, err := s.SetMatchResult(ctx, open.ID, "2-3")
	if err != nil {
		t.Fatal(err)
	}
	if sm.League != "vsl" || !sm.IsPlayed || sm.ResultScore != "2-3" {
		t.Errorf("stored match = %+v", sm)
	}
	if _, err := s.SetMatchResult(ctx, open.ID, "3-3"); !errors.Is(err, league.ErrMalformedScore) {
		t.Errorf("malformed score: %v", err)
	}
	if _, err := s.SetMatchResult(ctx, 9999, "3-0"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing match: %v", err)
	}
}

func TestApplyResultsMatchesNormalizedNames(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s)
	ctx := context.Background()

	changed, err := s.ApplyResults(ctx, "vsl", []league.Match{
		// unchanged
		{HomeTeam: "VAKIFBANK", AwayTeam: "ECZACIBAŞI DYNAVİT", IsPlayed: true, ResultScore: "3-1"},
		{HomeTeam: "FENERBAHÇE MEDICANA", AwayTeam: "Vakıfbank", IsPlayed: true, ResultScore: "3-2"},
		{HomeTeam: "Unknown", AwayTeam: "VakıfBank", IsPlayed: true, ResultScore: "3-0"},
		{HomeTeam: "Eczacıbaşı Dynavit", AwayTeam: "Fenerbahçe Medicana"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 {
		t.Fatalf("changed = %+v", changed)
	}
	if c := changed[0]; c.HomeTeam != "Fenerbahçe Medicana" || c.ResultScore != "3-2" || c.League != "vsl" {
		t.Errorf("changed match = %+v", c)
	}
}

func TestOverrides(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	user := "3f1c1a52-6a5e-4c1f-9a53-51f0d9c2b7aa"

	if err := s.SaveOverrides(ctx, user, "vsl", "VSL", league.Overrides{"A|||B": "3-0", "C-D": "2-3"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveOverrides(ctx, user, "vsl", "VSL", league.Overrides{"A|||B": "3-1"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Overrides(ctx, user, "vsl", "VSL")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["A|||B"] != "3-1" {
		t.Errorf("overrides = %v", got)
	}
	if other, _ := s.Overrides(ctx, "someone-else", "vsl", "VSL"); len(other) != 0 {
		t.Errorf("overrides leaked between users: %v", other)
	}

	if err := s.ResetOverrides(ctx, user, "vsl", "VSL"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Overrides(ctx, user, "vsl", "VSL"); len(got) != 0 {
		t.Errorf("overrides after reset = %v", got)
	}
}

func TestPredictionLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s)
	ctx := context.Background()
	now := time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	base := prediction.Prediction{League: "vsl", GroupName: "VSL", HomeTeam: "Fenerbahçe Medicana", AwayTeam: "VakıfBank"}

	save := func(user, score string) prediction.Prediction {
		t.Helper()
		p := base
		p.UserID, p.PredictedScore = user, score
		saved, err := s.SavePrediction(ctx, p)
		if err != nil {
			t.Fatalf("save %s: %v", user, err)
		}
		return saved
	}
	first := save("alice", "3-0")
	again := save("alice", "3-2")
	if again.ID != first.ID || again.PredictedScore != "3-2" {
		t.Errorf("upsert created a new prediction: %+v vs %+v", first, again)
	}
	save("bob", "3-1")
	save("carol", "0-3")

	// the opening match already has a result
	played := base
	played.UserID, played.HomeTeam, played.AwayTeam, played.PredictedScore = "alice", "VakıfBank", "Eczacıbaşı Dynavit", "3-0"
	if _, err := s.SavePrediction(ctx, played); !errors.Is(err, store.ErrMatchPlayed) {
		t.Errorf("prediction on a played match: %v", err)
	}
	invalid := base
	invalid.UserID, invalid.PredictedScore = "alice", "4-0"
	if _, err := s.SavePrediction(ctx, invalid); !errors.Is(err, prediction.ErrInvalidPrediction) {
		t.Errorf("invalid prediction: %v", err)
	}

	n, err := s.ScorePredictions(ctx, "vsl", base.HomeTeam, base.AwayTeam, "3-2")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("scored %d predictions, want 3", n)
	}
	if n, _ := s.ScorePredictions(ctx, "vsl", base.HomeTeam, base.AwayTeam, "3-2"); n != 0 {
		t.Errorf("predictions scored twice: %d", n)
	}

	list, err := s.Predictions(ctx, "alice", "vsl", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Scored || list[0].PointsEarned != prediction.ExactScorePoints {
		t.Errorf("alice predictions = %+v", list)
	}
	rescored := base
	rescored.UserID, rescored.PredictedScore = "alice", "3-1"
	if _, err := s.SavePrediction(ctx, rescored); !errors.Is(err, store.ErrPredictionScored) {
		t.Errorf("changing a scored prediction: %v", err)
	}
	if err := s.DeletePrediction(ctx, "alice", "vsl", base.HomeTeam, base.AwayTeam); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleting a scored prediction: %v", err)
	}

	lb, err := s.Leaderboard(ctx, prediction.PeriodWeekly, 10, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(lb.Entries) != 3 {
		t.Fatalf("leaderboard = %+v", lb.Entries)
	}
	if e := lb.Entries[0]; e.UserID != "alice" || e.Points != 15 || e.ExactScores != 1 {
		t.Errorf("leader = %+v", e)
	}
	if e := lb.Entries[1]; e.UserID != "bob" || e.Points != 8 || e.CorrectWinners != 1 {
		t.Errorf("second = %+v", e)
	}
	if lb.User == nil || lb.User.Rank != 3 || lb.User.Points != 0 {
		t.Errorf("user entry = %+v", lb.User)
	}

	// a week later the weekly board is empty but the total board is not
	now = now.AddDate(0, 0, 7)
	weekly, _ := s.Leaderboard(ctx, prediction.PeriodWeekly, 10, "")
	total, _ := s.Leaderboard(ctx, prediction.PeriodTotal, 10, "")
	if len(weekly.Entries) != 0 || len(total.Entries) != 3 {
		t.Errorf("weekly %d, total %d entries", len(weekly.Entries), len(total.Entries))
	}
}

func TestScorePredictionsFollowsCorrections(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s)
	ctx := context.Background()
	scoredAt := time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC)
	now := scoredAt
	s.SetClock(func() time.Time { return now })

	for user, score := range map[string]string{"alice": "3-2", "bob": "3-1", "carol": "0-3"} {
		p := prediction.Prediction{UserID: user, League: "vsl", GroupName: "VSL",
			HomeTeam: "Fenerbahçe Medicana", AwayTeam: "VakıfBank", PredictedScore: score}
		if _, err := s.SavePrediction(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := s.ScorePredictions(ctx, "vsl", "Fenerbahçe Medicana", "VakıfBank", "3-2"); err != nil || n != 3 {
		t.Fatalf("scored %d, err %v", n, err)
	}

	// the result is corrected a day later: only alice's points move
	now = scoredAt.AddDate(0, 0, 1)
	n, err := s.ScorePredictions(ctx, "vsl", "Fenerbahçe Medicana", "VakıfBank", "3-0")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rescored %d predictions, want 1", n)
	}
	list, _ := s.Predictions(ctx, "alice", "vsl", "")
	if len(list) != 1 || list[0].PointsEarned != prediction.CorrectWinnerPoints {
		t.Fatalf("alice = %+v", list)
	}

	lb, err := s.Leaderboard(ctx, prediction.PeriodTotal, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(lb.Entries) != 3 || lb.Entries[0].Points != prediction.CorrectWinnerPoints {
		t.Errorf("leaderboard = %+v", lb.Entries)
	}
}

func TestStats(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s)
	ctx := context.Background()

	for _, p := range []prediction.Prediction{
		{UserID: "alice", League: "vsl", HomeTeam: "Fenerbahçe Medicana", AwayTeam: "VakıfBank", PredictedScore: "3-0"},
		{UserID: "alice", League: "vsl", HomeTeam: "Eczacıbaşı Dynavit", AwayTeam: "Fenerbahçe Medicana", PredictedScore: "1-3"},
		{UserID: "bob", League: "vsl", HomeTeam: "Fenerbahçe Medicana", AwayTeam: "VakıfBank", PredictedScore: "2-3"},
	} {
		if _, err := s.SavePrediction(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.ScorePredictions(ctx, "vsl", "Fenerbahçe Medicana", "VakıfBank", "3-0"); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := store.Stats{Users: 2, Predictions: 3, ScoredPredictions: 2, PlayedMatches: 1, Matches: 3}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}

func TestDeletePrediction(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	p := prediction.Prediction{UserID: "u", League: "vsl", HomeTeam: "A", AwayTeam: "B", PredictedScore: "3-0"}
	if _, err := s.SavePrediction(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.DeletePrediction(ctx, "u", "vsl", "A", "B"); err != nil {
		t.Fatal(err)
	}
	if list, _ := s.Predictions(ctx, "u", "", ""); len(list) != 0 {
		t.Errorf("predictions after delete = %+v", list)
	}
}
