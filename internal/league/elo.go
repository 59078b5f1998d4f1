package league

import (
	"math"
	"math/rand"
	"sort"
)

const (
	// InitialElo is every team's rating before its first played match.
	InitialElo = 1200.0
	eloK       = 32.0
)

// ExpectedScore is the Elo expectation of a side rated a against b.
func ExpectedScore(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400))
}

// CalculateElo rates every team from its played matches in date order.
// Sweeps move ratings further than close wins.
func CalculateElo(teams []Team, matches []Match) map[string]float64 {
	ratings := make(map[string]float64, len(teams))
	for _, t := range teams {
		ratings[t.Name] = InitialElo
	}

	played := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.IsPlayed && m.ResultScore != "" {
			played = append(played, m)
		}
	}
	sort.SliceStable(played, func(i, j int) bool {
		return played[i].MatchDate < played[j].MatchDate
	})

	for _, m := range played {
		o, err := ParseScore(m.ResultScore)
		if err != nil {
			continue
		}
		homeElo, ok := ratings[m.HomeTeam]
		if !ok {
			homeElo = InitialElo
		}
		awayElo, ok := ratings[m.AwayTeam]
		if !ok {
			awayElo = InitialElo
		}

		// expected scores
		expHome := ExpectedScore(homeElo, awayElo)
		expAway := ExpectedScore(awayElo, homeElo)

		// actual scores
		scoreHome, scoreAway := 0.0, 1.0
		if o.HomeWin {
			scoreHome, scoreAway = 1, 0
		}

		multiplier := 1.0
		switch o.HomeSets - o.AwaySets {
		case 3, -3:
			multiplier = 1.3
		case 2, -2:
			multiplier = 1.1
		}

		ratings[m.HomeTeam] = homeElo + eloK*multiplier*(scoreHome-expHome)
		ratings[m.AwayTeam] = awayElo + eloK*multiplier*(scoreAway-expAway)
	}
	return ratings
}

// PredictScore picks a plausible final score for a pairing from the two Elo
// ratings: clear favourites win in three or four sets, toss-ups go long.
func PredictScore(rng *rand.Rand, homeElo, awayElo float64) string {
	p := ExpectedScore(homeElo, awayElo)
	r := rng.Float64()
	switch {
	case p > 0.65:
		if r < 0.5 {
			return "3-0"
		}
		return "3-1"
	case p > 0.55:
		switch {
		case r < 0.4:
			return "3-1"
		case r < 0.7:
			return "3-2"
		}
		return "3-0"
	case p > 0.45:
		switch {
		case r < 0.25:
			return "3-2"
		case r < 0.5:
			return "3-1"
		case r < 0.75:
			return "2-3"
		}
		return "1-3"
	case p > 0.35:
		switch {
		case r < 0.4:
			return "1-3"
		case r < 0.7:
			return "2-3"
		}
		return "0-3"
	}
	if r < 0.5 {
		return "0-3"
	}
	return "1-3"
}

// PredictAll fills an override for every undecided match that has none yet.
// Existing overrides are kept; the input map is not modified.
func PredictAll(rng *rand.Rand, teams []Team, matches []Match, overrides Overrides) Overrides {
	ratings := CalculateElo(teams, matches)
	out := overrides.Clone()
	for _, m := range matches {
		if m.IsPlayed {
			continue
		}
		if _, ok := out.Lookup(m); ok {
			continue
		}
		home, ok := ratings[m.HomeTeam]
		if !ok {
			home = InitialElo
		}
		away, ok := ratings[m.AwayTeam]
		if !ok {
			away = InitialElo
		}
		out[m.Key()] = PredictScore(rng, home, away)
	}
	return out
}
