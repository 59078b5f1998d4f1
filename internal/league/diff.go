package league

// RowDiff is how a team moved between a baseline table and a scenario.
// A positive RankDiff means the team climbed.
type RowDiff struct {
	Name      string `json:"name"`
	RankDiff  int    `json:"rankDiff"`
	PointDiff int    `json:"pointDiff"`
	WinDiff   int    `json:"winDiff"`
}

// CompareStandings reports the movement of every team of target that also
// appears in base, in target order.
func CompareStandings(base, target []StandingsRow) []RowDiff {
	byName := make(map[string]StandingsRow, len(base))
	for _, r := range base {
		byName[r.Name] = r
	}
	diffs := make([]RowDiff, 0, len(target))
	for _, r := range target {
		b, ok := byName[r.Name]
		if !ok {
			continue
		}
		diffs = append(diffs, RowDiff{
			Name:      r.Name,
			RankDiff:  b.Rank - r.Rank,
			PointDiff: r.Points - b.Points,
			WinDiff:   r.Wins - b.Wins,
		})
	}
	return diffs
}
