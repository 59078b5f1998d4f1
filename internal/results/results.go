// Package results records finished matches: it pulls them from the
// federation pages or accepts them from an operator, scores the predictions
// made on them and notifies live subscribers.
package results

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/live"
	"github.com/utakatalp/volley-simulator/internal/scrape"
	"github.com/utakatalp/volley-simulator/internal/store"
)

var ErrUnknownLeague = errors.New("unknown league")

type Store interface {
	Teams(ctx context.Context, leagueID, group string) ([]league.Team, error)
	Fixtures(ctx context.Context, leagueID, group string) ([]league.Match, error)
	ApplyResults(ctx context.Context, leagueID string, results []league.Match) ([]store.StoredMatch, error)
	SetMatchResult(ctx context.Context, id int, score string) (store.StoredMatch, error)
	ScorePredictions(ctx context.Context, leagueID, home, away, result string) (int, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url, group string) (*scrape.Page, error)
}

type Publisher interface {
	Publish(evt live.Event)
}

// Report summarizes one sync of a league.
type Report struct {
	League  string              `json:"league"`
	Fetched int                 `json:"fetched"`
	Updated []store.StoredMatch `json:"updated"`
	Scored  int                 `json:"scoredPredictions"`
}

type Syncer struct {
	cfg       *config.Config
	store     Store
	fetcher   Fetcher
	publisher Publisher
}

// NewSyncer wires a syncer. publisher may be nil when nobody listens.
func NewSyncer(cfg *config.Config, st Store, fetcher Fetcher, publisher Publisher) *Syncer {
	return &Syncer{cfg: cfg, store: st, fetcher: fetcher, publisher: publisher}
}

// SyncAll scrapes every league that has a source page. A failing league
// does not stop the others; their errors are joined.
func (s *Syncer) SyncAll(ctx context.Context) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, lc := range s.cfg.Leagues {
		if lc.SourceURL == "" {
			continue
		}
		logger := log.Ctx(ctx).With().Str("league", lc.ID).Logger()

		group := ""
		if len(lc.Groups) == 1 {
			group = lc.Groups[0]
		}
		page, err := s.fetcher.Fetch(logger.WithContext(ctx), lc.SourceURL, group)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to fetch results")
			errs = append(errs, fmt.Errorf("%s: %w", lc.ID, err))
			continue
		}
		if page.Skipped > 0 {
			logger.Warn().Int("skipped", page.Skipped).Msg("Unreadable scores on result page")
		}

		rep, err := s.Apply(logger.WithContext(ctx), lc.ID, page.Played())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// Apply records results for a league, scores predictions on every match
// whose result changed and broadcasts the new tables.
func (s *Syncer) Apply(ctx context.Context, leagueID string, matches []league.Match) (Report, error) {
	if _, ok := s.cfg.League(leagueID); !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	rep := Report{League: leagueID, Fetched: len(matches)}

	changed, err := s.store.ApplyResults(ctx, leagueID, matches)
	if err != nil {
		return rep, err
	}
	rep.Updated = changed

	groups := make(map[string]bool)
	for _, m := range changed {
		n, err := s.store.ScorePredictions(ctx, leagueID, m.HomeTeam, m.AwayTeam, m.ResultScore)
		if err != nil {
			return rep, fmt.Errorf("scoring predictions of %s: %w", m.Key(), err)
		}
		rep.Scored += n
		s.publishResult(m)
		groups[m.GroupName] = true
	}
	s.publishStandings(ctx, leagueID, groups)

	log.Ctx(ctx).Info().
		Str("league", leagueID).
		Int("fetched", rep.Fetched).
		Int("updated", len(rep.Updated)).
		Int("scored", rep.Scored).
		Msg("Results synced")
	return rep, nil
}

// SetResult records a verified result for one match.
func (s *Syncer) SetResult(ctx context.Context, id int, score string) (store.StoredMatch, int, error) {
	m, err := s.store.SetMatchResult(ctx, id, score)
	if err != nil {
		return store.StoredMatch{}, 0, err
	}
	n, err := s.store.ScorePredictions(ctx, m.League, m.HomeTeam, m.AwayTeam, m.ResultScore)
	if err != nil {
		return m, 0, fmt.Errorf("scoring predictions of %s: %w", m.Key(), err)
	}
	s.publishResult(m)
	s.publishStandings(ctx, m.League, map[string]bool{m.GroupName: true})
	return m, n, nil
}

func (s *Syncer) publishResult(m store.StoredMatch) {
	if s.publisher == nil {
		return
	}
	match := m.Match
	s.publisher.Publish(live.Event{
		Type:   live.EventResult,
		League: m.League,
		Group:  m.GroupName,
		Match:  &match,
	})
}

func (s *Syncer) publishStandings(ctx context.Context, leagueID string, groups map[string]bool) {
	if s.publisher == nil || len(groups) == 0 {
		return
	}
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	for _, g := range names {
		teams, err := s.store.Teams(ctx, leagueID, g)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("league", leagueID).Str("group", g).Msg("Cannot load teams for broadcast")
			continue
		}
		matches, err := s.store.Fixtures(ctx, leagueID, g)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("league", leagueID).Str("group", g).Msg("Cannot load fixtures for broadcast")
			continue
		}
		table := league.CalculateStandings(teams, matches, nil)
		s.publisher.Publish(live.Event{
			Type:   live.EventStandings,
			League: leagueID,
			Group:  g,
			Table:  &table,
		})
	}
}
