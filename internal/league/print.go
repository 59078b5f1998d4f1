package league

import (
	"fmt"
	"io"
)

// WriteTable renders a standings table in fixed-width columns.
func WriteTable(w io.Writer, label string, table Table) error {
	if _, err := fmt.Fprintln(w, label); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%3s %-28s %2s %2s %2s %3s %3s %6s %3s\n",
		"#", "Team", "P", "W", "L", "SW", "SL", "Ratio", "Pts"); err != nil {
		return err
	}
	for _, r := range table.Rows {
		ratio := "max"
		if r.SetRatio != MaxSetRatio {
			ratio = fmt.Sprintf("%.3f", r.SetRatio)
		}
		if _, err := fmt.Fprintf(w, "%3d %-28s %2d %2d %2d %3d %3d %6s %3d\n",
			r.Rank, r.Name, r.Played, r.Wins, r.Losses,
			r.SetsWon, r.SetsLost, ratio, r.Points,
		); err != nil {
			return err
		}
	}
	return nil
}

// WriteSchedule lists the fixtures week by week.
func WriteSchedule(w io.Writer, label string, matches []Match) error {
	if _, err := fmt.Fprintln(w, label); err != nil {
		return err
	}
	week := -1
	for _, m := range matches {
		if m.Week != week {
			week = m.Week
			if _, err := fmt.Fprintf(w, "Week %d:\n", week); err != nil {
				return err
			}
		}
		score := "-"
		if m.IsPlayed {
			score = m.ResultScore
		}
		if _, err := fmt.Fprintf(w, "  %s %s %s\n", m.HomeTeam, score, m.AwayTeam); err != nil {
			return err
		}
	}
	return nil
}
