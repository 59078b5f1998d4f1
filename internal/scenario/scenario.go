// Package scenario answers "what if" questions about a group: standings
// under hypothetical results, title and relegation odds, and saved
// per-user scenarios.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/league"
)

var (
	ErrUnknownLeague   = errors.New("unknown league")
	ErrUnknownGroup    = errors.New("unknown group")
	ErrInvalidOverride = errors.New("invalid override")
)

// FixtureSource provides the baseline teams and fixture of a league.
type FixtureSource interface {
	Teams(ctx context.Context, leagueID, group string) ([]league.Team, error)
	Fixtures(ctx context.Context, leagueID, group string) ([]league.Match, error)
	Groups(ctx context.Context, leagueID string) ([]string, error)
}

// OverrideStore keeps the saved scenario of each user per group.
type OverrideStore interface {
	Overrides(ctx context.Context, userID, leagueID, group string) (league.Overrides, error)
	SaveOverrides(ctx context.Context, userID, leagueID, group string, overrides league.Overrides) error
	ResetOverrides(ctx context.Context, userID, leagueID, group string) error
}

type Service struct {
	cfg       *config.Config
	fixtures  FixtureSource
	overrides OverrideStore
	seed      func() int64
}

func NewService(cfg *config.Config, fixtures FixtureSource, overrides OverrideStore) *Service {
	return &Service{
		cfg:       cfg,
		fixtures:  fixtures,
		overrides: overrides,
		seed:      func() int64 { return time.Now().UnixNano() },
	}
}

// Result is a group table under a set of overrides, with the movement of
// every team against the baseline table.
type Result struct {
	League    string           `json:"league"`
	Table     league.Table     `json:"table"`
	Changes   []league.RowDiff `json:"changes"`
	Overrides league.Overrides `json:"overrides"`
	Remaining int              `json:"remainingMatches"`
}

type groupData struct {
	cfg     config.LeagueConfig
	teams   []league.Team
	matches []league.Match
}

func (s *Service) load(ctx context.Context, leagueID, group string) (groupData, error) {
	lc, ok := s.cfg.League(leagueID)
	if !ok {
		return groupData{}, fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	teams, err := s.fixtures.Teams(ctx, leagueID, group)
	if err != nil {
		return groupData{}, fmt.Errorf("loading teams of %s/%s: %w", leagueID, group, err)
	}
	if len(teams) == 0 {
		return groupData{}, fmt.Errorf("%w: %s/%s", ErrUnknownGroup, leagueID, group)
	}
	matches, err := s.fixtures.Fixtures(ctx, leagueID, group)
	if err != nil {
		return groupData{}, fmt.Errorf("loading fixtures of %s/%s: %w", leagueID, group, err)
	}
	return groupData{cfg: lc, teams: teams, matches: matches}, nil
}

func (s *Service) calculate(ctx context.Context, g groupData, overrides league.Overrides) league.Table {
	table := league.CalculateStandings(g.teams, g.matches, overrides)
	logger := log.Ctx(ctx)
	for _, sk := range table.Skipped {
		logger.Warn().
			Str("league", g.cfg.ID).
			Str("group", table.GroupName).
			Str("home", sk.Match.HomeTeam).
			Str("away", sk.Match.AwayTeam).
			Str("score", sk.Match.ResultScore).
			Str("reason", sk.Reason).
			Msg("Skipped match")
	}
	if table.Warning != "" {
		logger.Warn().Str("league", g.cfg.ID).Str("group", table.GroupName).Msg(table.Warning)
	}
	return table
}

// Groups lists the groups of a league.
func (s *Service) Groups(ctx context.Context, leagueID string) ([]string, error) {
	if _, ok := s.cfg.League(leagueID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	return s.fixtures.Groups(ctx, leagueID)
}

// Standings returns the baseline table of a group.
func (s *Service) Standings(ctx context.Context, leagueID, group string) (league.Table, error) {
	g, err := s.load(ctx, leagueID, group)
	if err != nil {
		return league.Table{}, err
	}
	return s.calculate(ctx, g, nil), nil
}

// Scenario applies overrides on top of the baseline of a group.
func (s *Service) Scenario(ctx context.Context, leagueID, group string, overrides league.Overrides) (Result, error) {
	if err := ValidateOverrides(overrides); err != nil {
		return Result{}, err
	}
	g, err := s.load(ctx, leagueID, group)
	if err != nil {
		return Result{}, err
	}
	base := league.CalculateStandings(g.teams, g.matches, nil)
	table := s.calculate(ctx, g, overrides)
	return Result{
		League:    leagueID,
		Table:     table,
		Changes:   league.CompareStandings(base.Rows, table.Rows),
		Overrides: overrides,
		Remaining: len(remaining(g.matches, overrides)),
	}, nil
}

// OddsRequest selects the team and the scenario to estimate from. A nil
// Seed draws a fresh one.
type OddsRequest struct {
	Team      string
	Overrides league.Overrides
	Seed      *int64
	Trials    int
}

// Odds estimates how the requested team finishes once every match left
// undecided by the scenario is played out.
func (s *Service) Odds(ctx context.Context, leagueID, group string, req OddsRequest) (league.Odds, error) {
	if err := ValidateOverrides(req.Overrides); err != nil {
		return league.Odds{}, err
	}
	g, err := s.load(ctx, leagueID, group)
	if err != nil {
		return league.Odds{}, err
	}

	cfg := s.cfg.Estimator(g.cfg)
	cfg.Seed = s.seed()
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Trials > 0 && req.Trials < cfg.Trials {
		cfg.Trials = req.Trials
	}
	est, err := league.NewEstimator(cfg)
	if err != nil {
		return league.Odds{}, err
	}

	table := s.calculate(ctx, g, req.Overrides)
	left := remaining(g.matches, req.Overrides)
	start := time.Now()
	odds, err := est.Estimate(ctx, table.Rows, left, req.Team)
	if err != nil {
		return odds, err
	}
	log.Ctx(ctx).Debug().
		Str("league", leagueID).
		Str("group", group).
		Str("team", req.Team).
		Int("trials", odds.Trials).
		Int("remaining", len(left)).
		Bool("truncated", odds.Truncated).
		Dur("elapsed", time.Since(start)).
		Msg("Estimated odds")
	return odds, nil
}

// PredictAll fills every open match of the group that has no override with
// an Elo based guess. The given overrides are kept as they are.
func (s *Service) PredictAll(ctx context.Context, leagueID, group string, overrides league.Overrides, seed *int64) (league.Overrides, error) {
	if err := ValidateOverrides(overrides); err != nil {
		return nil, err
	}
	g, err := s.load(ctx, leagueID, group)
	if err != nil {
		return nil, err
	}
	sd := s.seed()
	if seed != nil {
		sd = *seed
	}
	return league.PredictAll(rand.New(rand.NewSource(sd)), g.teams, g.matches, overrides), nil
}

// SavedScenario returns the overrides a user saved for a group.
func (s *Service) SavedScenario(ctx context.Context, userID, leagueID, group string) (league.Overrides, error) {
	if _, ok := s.cfg.League(leagueID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	return s.overrides.Overrides(ctx, userID, leagueID, group)
}

func (s *Service) SaveScenario(ctx context.Context, userID, leagueID, group string, overrides league.Overrides) error {
	if _, ok := s.cfg.League(leagueID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	if err := ValidateOverrides(overrides); err != nil {
		return err
	}
	return s.overrides.SaveOverrides(ctx, userID, leagueID, group, overrides)
}

func (s *Service) ResetScenario(ctx context.Context, userID, leagueID, group string) error {
	if _, ok := s.cfg.League(leagueID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	return s.overrides.ResetOverrides(ctx, userID, leagueID, group)
}

// ValidateOverrides rejects overrides whose score is not a final set score.
func ValidateOverrides(overrides league.Overrides) error {
	for key, score := range overrides {
		if key == "" {
			return fmt.Errorf("%w: empty match key", ErrInvalidOverride)
		}
		if _, err := league.ParseScore(score); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOverride, key, err)
		}
	}
	return nil
}

// remaining lists the matches neither played nor decided by an override.
func remaining(matches []league.Match, overrides league.Overrides) []league.Match {
	var out []league.Match
	for _, m := range matches {
		if _, decided := league.EffectiveScore(m, overrides); !decided {
			out = append(out, m)
		}
	}
	return out
}
