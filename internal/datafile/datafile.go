// Package datafile reads the scraped {league}-data.json files.
package datafile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/league"
)

var (
	ErrNotFound      = errors.New("league data not found")
	ErrUnknownLeague = errors.New("unknown league")
)

// Data is the content of one league file.
type Data struct {
	Teams   []league.Team  `json:"teams"`
	Fixture []league.Match `json:"fixture"`
}

// fileMatch accepts the older "date" key next to "matchDate".
type fileMatch struct {
	league.Match
	Date string `json:"date,omitempty"`
}

type fileData struct {
	Teams   []league.Team `json:"teams"`
	Fixture []fileMatch   `json:"fixture"`
	Matches []fileMatch   `json:"matches"`
}

// Load reads a league file and applies the league's withdrawn-team filter and
// team renames.
func Load(path string, lc config.LeagueConfig) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(raw, lc)
}

// Decode parses file content; see Load.
func Decode(raw []byte, lc config.LeagueConfig) (*Data, error) {
	var fd fileData
	if err := json.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("decoding league %s: %w", lc.ID, err)
	}

	withdrawn := make(map[string]bool, len(lc.WithdrawnTeams))
	for _, name := range lc.WithdrawnTeams {
		withdrawn[name] = true
	}
	rename := func(name string) string {
		if to, ok := lc.TeamRenames[name]; ok {
			return to
		}
		return name
	}

	data := &Data{
		Teams:   make([]league.Team, 0, len(fd.Teams)),
		Fixture: make([]league.Match, 0, len(fd.Fixture)+len(fd.Matches)),
	}
	groupOf := make(map[string]string, len(fd.Teams))
	for _, t := range fd.Teams {
		if withdrawn[t.Name] {
			continue
		}
		t.Name = rename(t.Name)
		groupOf[t.Name] = t.GroupName
		data.Teams = append(data.Teams, t)
	}

	fixture := fd.Fixture
	if len(fixture) == 0 {
		fixture = fd.Matches
	}
	for _, fm := range fixture {
		m := fm.Match
		if withdrawn[m.HomeTeam] || withdrawn[m.AwayTeam] {
			continue
		}
		m.HomeTeam = rename(m.HomeTeam)
		m.AwayTeam = rename(m.AwayTeam)
		if m.MatchDate == "" {
			m.MatchDate = fm.Date
		}
		if m.GroupName == "" {
			m.GroupName = groupOf[m.HomeTeam]
		}
		data.Fixture = append(data.Fixture, m)
	}
	data.Fixture = append(data.Fixture, generateMissing(data)...)
	return data, nil
}

// generateMissing draws a double round-robin for every group that lists
// teams but no matches yet, numbered after the highest id in the file.
func generateMissing(d *Data) []league.Match {
	hasMatches := make(map[string]bool)
	nextID := 0
	for _, m := range d.Fixture {
		hasMatches[m.GroupName] = true
		if m.ID > nextID {
			nextID = m.ID
		}
	}
	var out []league.Match
	for _, g := range d.Groups() {
		if hasMatches[g] {
			continue
		}
		var names []string
		for _, t := range d.Teams {
			if t.GroupName == g {
				names = append(names, t.Name)
			}
		}
		generated := league.Flatten(league.GenerateFullSeason(g, names))
		for i := range generated {
			generated[i].ID += nextID
		}
		nextID += len(generated)
		out = append(out, generated...)
	}
	return out
}

// Groups lists the distinct group names of the teams, sorted.
func (d *Data) Groups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, t := range d.Teams {
		if !seen[t.GroupName] {
			seen[t.GroupName] = true
			groups = append(groups, t.GroupName)
		}
	}
	sort.Strings(groups)
	return groups
}

type cached struct {
	modTime time.Time
	data    *Data
}

// Source serves league data straight from the data directory. A file is
// parsed again only after its modification time changes.
type Source struct {
	cfg *config.Config

	mu    sync.Mutex
	cache map[string]cached
}

func NewSource(cfg *config.Config) *Source {
	return &Source{cfg: cfg, cache: make(map[string]cached)}
}

// League returns the full data of a configured league. The result is shared
// with the cache and must not be modified.
func (s *Source) League(ctx context.Context, id string) (*Data, error) {
	lc, ok := s.cfg.League(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLeague, id)
	}
	path := s.cfg.DataPath(lc)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[id]; ok && c.modTime.Equal(info.ModTime()) {
		return c.data, nil
	}
	data, err := Load(path, lc)
	if err != nil {
		return nil, err
	}
	s.cache[id] = cached{modTime: info.ModTime(), data: data}
	log.Ctx(ctx).Debug().
		Str("league", id).
		Int("teams", len(data.Teams)).
		Int("matches", len(data.Fixture)).
		Msg("Loaded league data file")
	return data, nil
}

// Teams returns the teams of a group; an empty group means every team.
func (s *Source) Teams(ctx context.Context, leagueID, group string) ([]league.Team, error) {
	data, err := s.League(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	out := make([]league.Team, 0, len(data.Teams))
	for _, t := range data.Teams {
		if group == "" || t.GroupName == group {
			out = append(out, t)
		}
	}
	return out, nil
}

// Fixtures returns the matches of a group; an empty group means every match.
func (s *Source) Fixtures(ctx context.Context, leagueID, group string) ([]league.Match, error) {
	data, err := s.League(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	out := make([]league.Match, 0, len(data.Fixture))
	for _, m := range data.Fixture {
		if group == "" || m.GroupName == group {
			out = append(out, m)
		}
	}
	return out, nil
}

// Groups prefers the configured group list and falls back to the file.
func (s *Source) Groups(ctx context.Context, leagueID string) ([]string, error) {
	lc, ok := s.cfg.League(leagueID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLeague, leagueID)
	}
	if len(lc.Groups) > 0 {
		return append([]string(nil), lc.Groups...), nil
	}
	data, err := s.League(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return data.Groups(), nil
}
