package league

import "sort"

// Skip reasons reported in Table.Skipped.
const (
	ReasonUnknownTeam    = "unknown team"
	ReasonMalformedScore = "malformed score"
)

const warnAllSkipped = "no decided match could be applied"

// accumulator tracks one team's counters while a table is folded.
type accumulator struct {
	name, group          string
	played, wins, points int
	setsWon, setsLost    int
}

func (a *accumulator) row() StandingsRow {
	return StandingsRow{
		Name:      a.name,
		GroupName: a.group,
		Played:    a.played,
		Wins:      a.wins,
		Losses:    a.played - a.wins,
		Points:    a.points,
		SetsWon:   a.setsWon,
		SetsLost:  a.setsLost,
		SetRatio:  setRatio(a.setsWon, a.setsLost),
	}
}

// applyOutcome folds one decided match into the two accumulators.
func applyOutcome(home, away *accumulator, o Outcome) {
	home.played++
	away.played++
	home.points += o.HomePoints
	away.points += o.AwayPoints
	home.setsWon += o.HomeSets
	home.setsLost += o.AwaySets
	away.setsWon += o.AwaySets
	away.setsLost += o.HomeSets
	if o.HomeWin {
		home.wins++
	} else {
		away.wins++
	}
}

// EffectiveScore returns the score that decides m: the real result when the
// match has been played, otherwise the override if one exists.
func EffectiveScore(m Match, overrides Overrides) (string, bool) {
	if m.IsPlayed {
		return m.ResultScore, true
	}
	return overrides.Lookup(m)
}

// CalculateStandings recomputes the table of a single group from its match
// list. Pre-aggregated totals on teams are ignored so that repeated calls with
// changing overrides never double count. The group is taken from the first
// team; teams of other groups are left out.
func CalculateStandings(teams []Team, matches []Match, overrides Overrides) Table {
	if len(teams) == 0 {
		return Table{Rows: []StandingsRow{}}
	}
	group := teams[0].GroupName
	members := make([]Team, 0, len(teams))
	for _, t := range teams {
		if t.GroupName == group {
			members = append(members, t)
		}
	}
	return calculateGroup(group, members, matches, overrides)
}

// CalculateGroups computes one table per group, ordered by group name. A team
// never appears in another group's table.
func CalculateGroups(teams []Team, matches []Match, overrides Overrides) []Table {
	byGroup := make(map[string][]Team)
	teamGroup := make(map[string]string, len(teams))
	for _, t := range teams {
		byGroup[t.GroupName] = append(byGroup[t.GroupName], t)
		teamGroup[t.Name] = t.GroupName
	}
	matchesByGroup := make(map[string][]Match)
	var orphans []Match
	for _, m := range matches {
		g := m.GroupName
		if g == "" {
			if hg, ok := teamGroup[m.HomeTeam]; ok {
				g = hg
			} else if ag, ok := teamGroup[m.AwayTeam]; ok {
				g = ag
			}
		}
		if _, ok := byGroup[g]; !ok {
			orphans = append(orphans, m)
			continue
		}
		matchesByGroup[g] = append(matchesByGroup[g], m)
	}
	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	tables := make([]Table, 0, len(groups))
	for _, g := range groups {
		tables = append(tables, calculateGroup(g, byGroup[g], matchesByGroup[g], overrides))
	}

	// a decided match no group can claim is reported on the first table
	if len(tables) > 0 {
		first := &tables[0]
		for _, m := range orphans {
			if _, ok := EffectiveScore(m, overrides); !ok {
				continue
			}
			first.Decided++
			first.Skipped = append(first.Skipped, SkippedMatch{Match: m, Reason: ReasonUnknownTeam})
		}
		first.flagAllSkipped()
	}
	return tables
}

func calculateGroup(group string, teams []Team, matches []Match, overrides Overrides) Table {
	// 1) zeroed accumulator per team
	entries := make(map[string]*accumulator, len(teams))
	for _, t := range teams {
		if _, ok := entries[t.Name]; !ok {
			entries[t.Name] = &accumulator{name: t.Name, group: group}
		}
	}

	table := Table{GroupName: group}
	for _, m := range matches {
		if m.GroupName != "" && m.GroupName != group {
			continue
		}
		// 2) effective result
		score, ok := EffectiveScore(m, overrides)
		if !ok {
			continue
		}
		table.Decided++

		home, away := entries[m.HomeTeam], entries[m.AwayTeam]
		if home == nil || away == nil {
			table.Skipped = append(table.Skipped, SkippedMatch{Match: m, Reason: ReasonUnknownTeam})
			continue
		}
		// 3) validate
		o, err := ParseScore(score)
		if err != nil {
			table.Skipped = append(table.Skipped, SkippedMatch{Match: m, Reason: ReasonMalformedScore})
			continue
		}
		// 4) league point rule
		applyOutcome(home, away, o)
	}
	table.flagAllSkipped()

	// 5) sort, 6) rank
	table.Rows = rankRows(entries)
	return table
}

func (t *Table) flagAllSkipped() {
	if t.Decided > 0 && len(t.Skipped) == t.Decided {
		t.Warning = warnAllSkipped
	}
}

func rankRows(entries map[string]*accumulator) []StandingsRow {
	rows := make([]StandingsRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.row())
	}
	sortRows(rows)
	return rows
}

// sortRows orders by points, set ratio, sets won and name, then assigns ranks.
func sortRows(rows []StandingsRow) {
	sort.Slice(rows, func(i, j int) bool {
		return lessRow(rows[i], rows[j])
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

func lessRow(a, b StandingsRow) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if c := compareSetRatio(a.SetsWon, a.SetsLost, b.SetsWon, b.SetsLost); c != 0 {
		return c > 0
	}
	if a.SetsWon != b.SetsWon {
		return a.SetsWon > b.SetsWon
	}
	return a.Name < b.Name
}

// compareSetRatio compares wa/la with wb/lb without floating point error.
// A team that has won sets without losing one outranks every finite ratio.
func compareSetRatio(wa, la, wb, lb int) int {
	infA, infB := la == 0 && wa > 0, lb == 0 && wb > 0
	switch {
	case infA && infB:
		return 0
	case infA:
		return 1
	case infB:
		return -1
	case la == 0 && lb == 0:
		return 0
	case la == 0:
		// wa == 0 here: a team without sets sits at ratio 0
		if wb == 0 {
			return 0
		}
		return -1
	case lb == 0:
		if wa == 0 {
			return 0
		}
		return 1
	}
	l, r := wa*lb, wb*la
	switch {
	case l > r:
		return 1
	case l < r:
		return -1
	}
	return 0
}
