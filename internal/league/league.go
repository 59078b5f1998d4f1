package league

import "math"

// MaxSetRatio stands in for the set ratio of a team that has won sets
// without losing any.
const MaxSetRatio = math.MaxFloat64

// Team represents a club's aggregate record inside one group.
type Team struct {
	Name      string `json:"name"`
	GroupName string `json:"groupName"`
	Played    int    `json:"played"`
	Wins      int    `json:"wins"`
	Points    int    `json:"points"`
	SetsWon   int    `json:"setsWon"`
	SetsLost  int    `json:"setsLost"`
}

// SetRatio returns SetsWon/SetsLost.
func (t Team) SetRatio() float64 {
	return setRatio(t.SetsWon, t.SetsLost)
}

// Match represents a fixture between two teams of the same group.
type Match struct {
	ID          int    `json:"id,omitempty"`
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	GroupName   string `json:"groupName"`
	IsPlayed    bool   `json:"isPlayed"`
	ResultScore string `json:"resultScore,omitempty"`
	MatchDate   string `json:"matchDate,omitempty"`
	Week        int    `json:"week,omitempty"`
	Venue       string `json:"venue,omitempty"`
}

// Key is the canonical override identity of the match.
func (m Match) Key() string {
	return MatchKey(m.HomeTeam, m.AwayTeam)
}

// StandingsRow holds the standings info for one team.
type StandingsRow struct {
	Rank      int     `json:"rank"`
	Name      string  `json:"name"`
	GroupName string  `json:"groupName"`
	Played    int     `json:"played"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Points    int     `json:"points"`
	SetsWon   int     `json:"setsWon"`
	SetsLost  int     `json:"setsLost"`
	SetRatio  float64 `json:"setRatio"`
}

// SkippedMatch records a match that could not be folded into a table.
type SkippedMatch struct {
	Match  Match  `json:"match"`
	Reason string `json:"reason"`
}

// Table is the ordered standings of one group.
type Table struct {
	GroupName string         `json:"groupName"`
	Rows      []StandingsRow `json:"rows"`
	Decided   int            `json:"decided"`
	Skipped   []SkippedMatch `json:"skipped,omitempty"`
	Warning   string         `json:"warning,omitempty"`
}

// Row returns the row for the named team.
func (t Table) Row(name string) (StandingsRow, bool) {
	for _, r := range t.Rows {
		if r.Name == name {
			return r, true
		}
	}
	return StandingsRow{}, false
}

func setRatio(won, lost int) float64 {
	switch {
	case lost > 0:
		return float64(won) / float64(lost)
	case won > 0:
		return MaxSetRatio
	default:
		return 0
	}
}
