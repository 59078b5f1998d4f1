package league

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultHomeAdvantage is added to the home side's power in simulated matches.
const DefaultHomeAdvantage = 0.05

var (
	ErrInvalidTrials = errors.New("trial count must be positive")
	ErrInvalidConfig = errors.New("invalid estimator configuration")
	ErrUnknownTeam   = errors.New("team not found in standings")
)

// EstimatorConfig tunes a Monte Carlo run.
type EstimatorConfig struct {
	Trials             int
	Workers            int
	Seed               int64
	HomeAdvantage      float64
	ChampionshipCutoff int
	PlayoffCutoff      int
	RelegationSpots    int
	// Budget bounds the wall-clock time of one Estimate call; zero means no limit.
	Budget time.Duration
}

// DefaultEstimatorConfig mirrors the first division rules: one champion, top
// four to the playoffs, bottom two relegated.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Trials:             5000,
		Workers:            4,
		Seed:               time.Now().UnixNano(),
		HomeAdvantage:      DefaultHomeAdvantage,
		ChampionshipCutoff: 1,
		PlayoffCutoff:      4,
		RelegationSpots:    2,
	}
}

func (c EstimatorConfig) validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTrials, c.Trials)
	}
	if c.ChampionshipCutoff < 1 {
		return fmt.Errorf("%w: championship cutoff %d", ErrInvalidConfig, c.ChampionshipCutoff)
	}
	if c.PlayoffCutoff < 0 || c.RelegationSpots < 0 {
		return fmt.Errorf("%w: negative playoff or relegation spots", ErrInvalidConfig)
	}
	if c.Budget < 0 {
		return fmt.Errorf("%w: negative budget", ErrInvalidConfig)
	}
	return nil
}

type OddsStatus string

const (
	StatusOK          OddsStatus = "ok"
	StatusUnknownTeam OddsStatus = "unknown_team"
)

// MatchPrediction is the simulated home win chance of one undecided match.
type MatchPrediction struct {
	HomeTeam    string  `json:"homeTeam"`
	AwayTeam    string  `json:"awayTeam"`
	HomeWinProb float64 `json:"homeWinProb"`
	AwayWinProb float64 `json:"awayWinProb"`
}

// Odds is the outcome of an Estimate call for one team.
type Odds struct {
	Team          string            `json:"team"`
	Status        OddsStatus        `json:"status"`
	Trials        int               `json:"trials"`
	Championship  float64           `json:"championshipProbability"`
	Playoff       float64           `json:"playoffProbability"`
	Relegation    float64           `json:"relegationProbability"`
	BestRank      int               `json:"bestRank"`
	WorstRank     int               `json:"worstRank"`
	AveragePoints float64           `json:"averagePoints"`
	RankCounts    []int             `json:"rankCounts"`
	Truncated     bool              `json:"truncated,omitempty"`
	Predictions   []MatchPrediction `json:"matchPredictions,omitempty"`
}

// Estimator runs randomized playthroughs of the remaining schedule.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator validates cfg and returns an Estimator.
func NewEstimator(cfg EstimatorConfig) (*Estimator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Estimator{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (e *Estimator) Config() EstimatorConfig { return e.cfg }

// pairing is an undecided match resolved to accumulator indexes.
type pairing struct {
	home, away int
	pHome      float64
}

// tally accumulates one worker's results.
type tally struct {
	trials                        int
	champion, playoff, relegation int
	best, worst                   int
	points                        int
	ranks                         []int
}

func newTally(teams int) *tally {
	return &tally{best: teams + 1, ranks: make([]int, teams+1)}
}

func (t *tally) add(rank, points, teams int, cfg EstimatorConfig) {
	t.trials++
	t.points += points
	t.ranks[rank]++
	if rank < t.best {
		t.best = rank
	}
	if rank > t.worst {
		t.worst = rank
	}
	if rank <= cfg.ChampionshipCutoff {
		t.champion++
	}
	if rank <= cfg.PlayoffCutoff {
		t.playoff++
	}
	if rank > teams-cfg.RelegationSpots {
		t.relegation++
	}
}

func (t *tally) merge(o *tally) {
	t.trials += o.trials
	t.champion += o.champion
	t.playoff += o.playoff
	t.relegation += o.relegation
	t.points += o.points
	if o.best < t.best {
		t.best = o.best
	}
	if o.worst > t.worst {
		t.worst = o.worst
	}
	for i, c := range o.ranks {
		t.ranks[i] += c
	}
}

// Estimate plays out the undecided matches in remaining many times on top of
// the current rows and reports how often team finishes as champion, inside
// the playoff places and inside the relegation places. Matches already marked
// as played and matches naming teams missing from rows are ignored.
func (e *Estimator) Estimate(ctx context.Context, rows []StandingsRow, remaining []Match, team string) (Odds, error) {
	// 1) locate the team and build the base state
	index := make(map[string]int, len(rows))
	base := make([]accumulator, len(rows))
	powers := make([]float64, len(rows))
	for i, r := range rows {
		index[r.Name] = i
		base[i] = accumulator{
			name: r.Name, group: r.GroupName,
			played: r.Played, wins: r.Wins, points: r.Points,
			setsWon: r.SetsWon, setsLost: r.SetsLost,
		}
		powers[i] = Power(r)
	}
	target, ok := index[team]
	if !ok {
		return Odds{Team: team, Status: StatusUnknownTeam}, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}

	// 2) resolve undecided pairings
	var pairings []pairing
	var predictions []MatchPrediction
	for _, m := range remaining {
		if m.IsPlayed {
			continue
		}
		h, okH := index[m.HomeTeam]
		a, okA := index[m.AwayTeam]
		if !okH || !okA {
			continue
		}
		p := HomeWinProbability(powers[h], powers[a], e.cfg.HomeAdvantage)
		pairings = append(pairings, pairing{home: h, away: a, pHome: p})
		predictions = append(predictions, MatchPrediction{
			HomeTeam: m.HomeTeam, AwayTeam: m.AwayTeam,
			HomeWinProb: p, AwayWinProb: 1 - p,
		})
	}

	n := len(rows)
	total := newTally(n)
	odds := Odds{Team: team, Status: StatusOK, Predictions: predictions}

	// 3) nothing left to play: the current table is final
	if len(pairings) == 0 {
		rank, points := playTrial(nil, base, nil, make([]StandingsRow, n), target)
		total.add(rank, points, n, e.cfg)
		return finishOdds(odds, total), nil
	}

	parent := ctx
	if e.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Budget)
		defer cancel()
	}

	// 4) trial i runs on worker i mod W with that worker's own generator
	workers := e.cfg.Workers
	if workers > e.cfg.Trials {
		workers = e.cfg.Trials
	}
	results := make([]*tally, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewSource(e.cfg.Seed + int64(w)))
			local := newTally(n)
			state := make([]accumulator, n)
			scratch := make([]StandingsRow, n)
			for i := w; i < e.cfg.Trials; i += workers {
				if ctx.Err() != nil {
					break
				}
				copy(state, base)
				rank, points := playTrial(rng, state, pairings, scratch, target)
				local.add(rank, points, n, e.cfg)
			}
			results[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Odds{}, err
	}
	for _, r := range results {
		total.merge(r)
	}

	// the caller giving up is an error; running out of budget is not
	if err := parent.Err(); err != nil {
		return Odds{}, fmt.Errorf("estimate %q: %w", team, err)
	}
	if total.trials == 0 {
		return Odds{}, fmt.Errorf("estimate %q: no trial completed: %w", team, ctx.Err())
	}
	odds.Truncated = total.trials < e.cfg.Trials
	return finishOdds(odds, total), nil
}

// playTrial simulates every pairing onto state and returns the target's
// final rank and points.
func playTrial(rng *rand.Rand, state []accumulator, pairings []pairing, scratch []StandingsRow, target int) (int, int) {
	for _, p := range pairings {
		o := SimulateMatch(rng, p.pHome)
		applyOutcome(&state[p.home], &state[p.away], o)
	}
	for i := range state {
		scratch[i] = state[i].row()
	}
	sortRows(scratch)
	name := state[target].name
	for _, r := range scratch {
		if r.Name == name {
			return r.Rank, r.Points
		}
	}
	return len(scratch), state[target].points
}

func finishOdds(odds Odds, t *tally) Odds {
	trials := float64(t.trials)
	odds.Trials = t.trials
	odds.Championship = float64(t.champion) / trials
	odds.Playoff = float64(t.playoff) / trials
	odds.Relegation = float64(t.relegation) / trials
	odds.BestRank = t.best
	odds.WorstRank = t.worst
	odds.AveragePoints = float64(t.points) / trials
	odds.RankCounts = t.ranks[1:]
	return odds
}
