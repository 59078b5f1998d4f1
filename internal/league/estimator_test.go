package league

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func testConfig(trials int) EstimatorConfig {
	cfg := DefaultEstimatorConfig()
	cfg.Trials = trials
	cfg.Seed = 7
	return cfg
}

func TestNewEstimatorRejectsBadConfig(t *testing.T) {
	cfg := testConfig(0)
	if _, err := NewEstimator(cfg); !errors.Is(err, ErrInvalidTrials) {
		t.Errorf("zero trials: got %v", err)
	}

	cfg = testConfig(10)
	cfg.ChampionshipCutoff = 0
	if _, err := NewEstimator(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero championship cutoff: got %v", err)
	}

	cfg = testConfig(10)
	cfg.Workers = 0
	e, err := NewEstimator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if e.Config().Workers != 1 {
		t.Errorf("workers = %d, want 1", e.Config().Workers)
	}
}

func TestEstimateUnknownTeam(t *testing.T) {
	e, err := NewEstimator(testConfig(100))
	if err != nil {
		t.Fatal(err)
	}
	rows := CalculateStandings(group("G", "A", "B"), nil, nil).Rows

	odds, err := e.Estimate(context.Background(), rows, nil, "Nobody")
	if !errors.Is(err, ErrUnknownTeam) {
		t.Fatalf("error = %v", err)
	}
	if odds.Status != StatusUnknownTeam {
		t.Errorf("status = %q", odds.Status)
	}
}

func TestEstimateWithNothingLeftIsDeterministic(t *testing.T) {
	teams := group("G", "A", "B", "C")
	matches := []Match{
		played("G", "A", "B", "3-0"),
		played("G", "A", "C", "3-1"),
		played("G", "B", "C", "3-2"),
	}
	rows := CalculateStandings(teams, matches, nil).Rows

	cfg := testConfig(1000)
	cfg.PlayoffCutoff = 2
	cfg.RelegationSpots = 1
	e, err := NewEstimator(cfg)
	if err != nil {
		t.Fatal(err)
	}

	leader, err := e.Estimate(context.Background(), rows, matches, "A")
	if err != nil {
		t.Fatal(err)
	}
	if leader.Trials != 1 || leader.Championship != 1 || leader.Playoff != 1 || leader.Relegation != 0 {
		t.Errorf("leader odds = %+v", leader)
	}

	last, err := e.Estimate(context.Background(), rows, matches, "C")
	if err != nil {
		t.Fatal(err)
	}
	if last.Championship != 0 || last.Playoff != 0 || last.Relegation != 1 {
		t.Errorf("last odds = %+v", last)
	}
	if last.BestRank != 3 || last.WorstRank != 3 || last.AveragePoints != 1 {
		t.Errorf("last ranks = %+v", last)
	}
}

func TestEstimateEvenPairingIsBalanced(t *testing.T) {
	rows := CalculateStandings(group("G", "A", "B"), nil, nil).Rows
	remaining := []Match{pending("G", "A", "B")}

	cfg := testConfig(20000)
	cfg.HomeAdvantage = 0
	e, err := NewEstimator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	odds, err := e.Estimate(context.Background(), rows, remaining, "A")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(odds.Championship-0.5) > 0.03 {
		t.Errorf("championship = %.4f, want about 0.5", odds.Championship)
	}
	if len(odds.Predictions) != 1 || odds.Predictions[0].HomeWinProb != 0.5 {
		t.Errorf("predictions = %+v", odds.Predictions)
	}
}

func TestEstimateIsReproducibleForSeed(t *testing.T) {
	teams, matches := randomSeason(t, 6, 0.5)
	rows := CalculateStandings(teams, matches, nil).Rows

	run := func() Odds {
		e, err := NewEstimator(testConfig(3000))
		if err != nil {
			t.Fatal(err)
		}
		odds, err := e.Estimate(context.Background(), rows, matches, "Team 03")
		if err != nil {
			t.Fatal(err)
		}
		return odds
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Errorf("same seed gave different odds:\n%+v\n%+v", a, b)
	}
}

func TestEstimateBounds(t *testing.T) {
	teams, matches := randomSeason(t, 8, 0.3)
	rows := CalculateStandings(teams, matches, nil).Rows

	e, err := NewEstimator(testConfig(2000))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		odds, err := e.Estimate(context.Background(), rows, matches, r.Name)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range []float64{odds.Championship, odds.Playoff, odds.Relegation} {
			if p < 0 || p > 1 {
				t.Fatalf("%s: probability %v out of range", r.Name, p)
			}
		}
		if odds.Championship > odds.Playoff {
			t.Errorf("%s: championship %v above playoff %v", r.Name, odds.Championship, odds.Playoff)
		}
		sum := 0
		for _, c := range odds.RankCounts {
			sum += c
		}
		if sum != odds.Trials || odds.Trials != 2000 || odds.Truncated {
			t.Errorf("%s: rank counts sum %d over %d trials", r.Name, sum, odds.Trials)
		}
		if odds.BestRank < 1 || odds.WorstRank > len(rows) || odds.BestRank > odds.WorstRank {
			t.Errorf("%s: ranks %d..%d", r.Name, odds.BestRank, odds.WorstRank)
		}
		if odds.AveragePoints < float64(r.Points) {
			t.Errorf("%s: average points %v below current %d", r.Name, odds.AveragePoints, r.Points)
		}
	}
}

func TestEstimateCanceledContext(t *testing.T) {
	rows := CalculateStandings(group("G", "A", "B"), nil, nil).Rows
	remaining := []Match{pending("G", "A", "B")}

	e, err := NewEstimator(testConfig(100))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Estimate(ctx, rows, remaining, "A"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPower(t *testing.T) {
	if p := Power(StandingsRow{}); p != NeutralPower {
		t.Errorf("unplayed power = %v", p)
	}
	perfect := StandingsRow{Played: 3, Wins: 3, Points: 9, SetsWon: 9}
	if p := Power(perfect); math.Abs(p-1) > 1e-9 {
		t.Errorf("perfect power = %v", p)
	}
	winless := StandingsRow{Played: 2, SetsLost: 6}
	if p := Power(winless); p != 0 {
		t.Errorf("winless power = %v", p)
	}
}

func TestHomeWinProbability(t *testing.T) {
	if p := HomeWinProbability(0.5, 0.5, 0); p != 0.5 {
		t.Errorf("even = %v", p)
	}
	if p := HomeWinProbability(0.5, 0.5, DefaultHomeAdvantage); p <= 0.5 {
		t.Errorf("home advantage not applied: %v", p)
	}
	if p := HomeWinProbability(0, 0, 0); p != 0.5 {
		t.Errorf("zero powers = %v", p)
	}
}

func TestSimulateMatchProducesValidScores(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		o := SimulateMatch(rng, rng.Float64())
		if _, err := ParseScore(o.String()); err != nil {
			t.Fatalf("invalid simulated score %s", o)
		}
	}
	for i := 0; i < 100; i++ {
		if o := SimulateMatch(rng, 1); !o.HomeWin {
			t.Fatal("certain home win was lost")
		}
	}
}
