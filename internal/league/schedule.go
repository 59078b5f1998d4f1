package league

// GenerateSchedule returns a single round-robin for the given team names.
// It outputs a slice of rounds, each round being the matches of one week.
func GenerateSchedule(group string, teams []string) [][]Match {
	if len(teams) < 2 {
		return nil
	}
	slots := make([]string, len(teams))
	copy(slots, teams)

	// odd number of teams: an empty slot is the bye
	if len(slots)%2 != 0 {
		slots = append(slots, "")
	}
	n := len(slots)

	rounds := make([][]Match, n-1)
	for i := 0; i < n-1; i++ {
		round := make([]Match, 0, n/2)
		for j := 0; j < n/2; j++ {
			home, away := slots[j], slots[n-1-j]
			if home == "" || away == "" {
				continue
			}
			// alternate the fixed team's venue so it is not always at home
			if j == 0 && i%2 == 1 {
				home, away = away, home
			}
			round = append(round, Match{HomeTeam: home, AwayTeam: away, GroupName: group, Week: i + 1})
		}
		rounds[i] = round

		// rotate every slot but the first
		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}
	return rounds
}

// GenerateFullSeason returns a double round-robin: the second half repeats
// the first with home and away swapped.
func GenerateFullSeason(group string, teams []string) [][]Match {
	firstHalf := GenerateSchedule(group, teams)
	secondHalf := make([][]Match, len(firstHalf))
	for i, rnd := range firstHalf {
		swapped := make([]Match, len(rnd))
		for j, m := range rnd {
			swapped[j] = Match{HomeTeam: m.AwayTeam, AwayTeam: m.HomeTeam, GroupName: group, Week: i + 1 + len(firstHalf)}
		}
		secondHalf[i] = swapped
	}
	return append(firstHalf, secondHalf...)
}

// Flatten concatenates rounds into one fixture list and numbers the matches.
func Flatten(rounds [][]Match) []Match {
	var out []Match
	for _, rnd := range rounds {
		for _, m := range rnd {
			m.ID = len(out) + 1
			out = append(out, m)
		}
	}
	return out
}
