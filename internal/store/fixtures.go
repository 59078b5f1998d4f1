package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/league"
)

// StoredMatch is a match together with the league it belongs to.
type StoredMatch struct {
	League string `json:"league"`
	league.Match
}

// ImportLeague upserts the teams and fixture of a league in one transaction.
// Results already stored are kept when the incoming match is unplayed, so a
// stale data file never erases a verified result.
func (s *Store) ImportLeague(ctx context.Context, leagueID string, teams []league.Team, matches []league.Match) error {
	const teamQ = `
		INSERT INTO teams (league, group_name, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (league, name) DO UPDATE SET group_name = excluded.group_name`
	const matchQ = `
		INSERT INTO matches (league, group_name, home_team, away_team, match_date, week, venue, is_played, result_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (league, home_team, away_team) DO UPDATE SET
			group_name   = excluded.group_name,
			match_date   = excluded.match_date,
			week         = excluded.week,
			venue        = excluded.venue,
			is_played    = CASE WHEN excluded.result_score <> '' THEN excluded.is_played ELSE matches.is_played END,
			result_score = CASE WHEN excluded.result_score <> '' THEN excluded.result_score ELSE matches.result_score END,
			updated_at   = excluded.updated_at`

	now := s.unixNow()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range teams {
			if _, err := tx.ExecContext(ctx, teamQ, leagueID, t.GroupName, t.Name); err != nil {
				return fmt.Errorf("inserting team %s: %w", t.Name, err)
			}
		}
		for _, m := range matches {
			score := ""
			if m.IsPlayed {
				score = m.ResultScore
			}
			if _, err := tx.ExecContext(ctx, matchQ,
				leagueID, m.GroupName, m.HomeTeam, m.AwayTeam,
				m.MatchDate, m.Week, m.Venue, m.IsPlayed, score, now,
			); err != nil {
				return fmt.Errorf("inserting match %s: %w", m.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("importing league %s: %w", leagueID, err)
	}

	log.Ctx(ctx).Info().
		Str("league", leagueID).
		Int("teams", len(teams)).
		Int("matches", len(matches)).
		Msg("Imported league")
	return nil
}

// Teams returns the teams of a group; an empty group means every team of
// the league.
func (s *Store) Teams(ctx context.Context, leagueID, group string) ([]league.Team, error) {
	const q = `
		SELECT name, group_name
		FROM teams
		WHERE league = $1 AND ($2 = '' OR group_name = $2)
		ORDER BY group_name, name`

	rows, err := s.DB.QueryContext(ctx, q, leagueID, group)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	teams := []league.Team{}
	for rows.Next() {
		var t league.Team
		if err := rows.Scan(&t.Name, &t.GroupName); err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating teams rows: %w", err)
	}
	return teams, nil
}

const matchColumns = `id, group_name, home_team, away_team, match_date, week, venue, is_played, result_score`

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(sc scanner) (league.Match, error) {
	var m league.Match
	err := sc.Scan(&m.ID, &m.GroupName, &m.HomeTeam, &m.AwayTeam,
		&m.MatchDate, &m.Week, &m.Venue, &m.IsPlayed, &m.ResultScore)
	return m, err
}

// Fixtures returns the matches of a group ordered by week and date; an empty
// group means every match of the league.
func (s *Store) Fixtures(ctx context.Context, leagueID, group string) ([]league.Match, error) {
	q := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE league = $1 AND ($2 = '' OR group_name = $2)
		ORDER BY week, match_date, id`

	rows, err := s.DB.QueryContext(ctx, q, leagueID, group)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []league.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches rows: %w", err)
	}
	return matches, nil
}

// Groups lists the group names of a league.
func (s *Store) Groups(ctx context.Context, leagueID string) ([]string, error) {
	const q = `SELECT DISTINCT group_name FROM teams WHERE league = $1 ORDER BY group_name`

	rows, err := s.DB.QueryContext(ctx, q, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Match loads a single match by id.
func (s *Store) Match(ctx context.Context, id int) (StoredMatch, error) {
	q := `SELECT league, ` + matchColumns + ` FROM matches WHERE id = $1`

	var sm StoredMatch
	err := s.DB.QueryRowContext(ctx, q, id).Scan(&sm.League,
		&sm.ID, &sm.GroupName, &sm.HomeTeam, &sm.AwayTeam,
		&sm.MatchDate, &sm.Week, &sm.Venue, &sm.IsPlayed, &sm.ResultScore)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredMatch{}, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return StoredMatch{}, fmt.Errorf("loading match %d: %w", id, err)
	}
	return sm, nil
}

// SetMatchResult records a verified result for a match.
func (s *Store) SetMatchResult(ctx context.Context, id int, score string) (StoredMatch, error) {
	o, err := league.ParseScore(score)
	if err != nil {
		return StoredMatch{}, err
	}
	const q = `UPDATE matches SET is_played = $1, result_score = $2, updated_at = $3 WHERE id = $4`

	res, err := s.DB.ExecContext(ctx, q, true, o.String(), s.unixNow(), id)
	if err != nil {
		return StoredMatch{}, fmt.Errorf("saving result of match %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return StoredMatch{}, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	return s.Match(ctx, id)
}

// ApplyResults records scraped results. Team names are compared in
// normalized form so spelling differences on the source page still match
// the stored fixture. Only matches whose result changed are updated and
// returned.
func (s *Store) ApplyResults(ctx context.Context, leagueID string, results []league.Match) ([]StoredMatch, error) {
	fixtures, err := s.Fixtures(ctx, leagueID, "")
	if err != nil {
		return nil, err
	}
	byPair := make(map[string]league.Match, len(fixtures))
	for _, m := range fixtures {
		byPair[pairKey(m.HomeTeam, m.AwayTeam)] = m
	}

	const q = `UPDATE matches SET is_played = $1, result_score = $2, updated_at = $3 WHERE id = $4`
	now := s.unixNow()
	var changed []StoredMatch
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range results {
			if !r.IsPlayed {
				continue
			}
			stored, ok := byPair[pairKey(r.HomeTeam, r.AwayTeam)]
			if !ok {
				log.Ctx(ctx).Warn().
					Str("league", leagueID).
					Str("home", r.HomeTeam).
					Str("away", r.AwayTeam).
					Msg("Result for unknown fixture")
				continue
			}
			o, err := league.ParseScore(r.ResultScore)
			if err != nil {
				continue
			}
			if stored.IsPlayed && stored.ResultScore == o.String() {
				continue
			}
			if _, err := tx.ExecContext(ctx, q, true, o.String(), now, stored.ID); err != nil {
				return fmt.Errorf("updating match %d: %w", stored.ID, err)
			}
			stored.IsPlayed = true
			stored.ResultScore = o.String()
			changed = append(changed, StoredMatch{League: leagueID, Match: stored})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("applying results for %s: %w", leagueID, err)
	}
	return changed, nil
}

func pairKey(home, away string) string {
	return league.NormalizeTeamName(home) + "|" + league.NormalizeTeamName(away)
}
