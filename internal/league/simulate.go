package league

import (
	"math"
	"math/rand"
)

// Power rating weights and bounds.
const (
	winRateWeight  = 0.4
	setRatioWeight = 0.3
	pointsWeight   = 0.3

	// SetRatioCap is the set ratio that maps to a full set-ratio component.
	SetRatioCap = 3.0
	// NeutralPower is assigned to teams that have not played yet.
	NeutralPower = 0.5
	// MaxPointsPerMatch is what a 3-0 or 3-1 win awards.
	MaxPointsPerMatch = 3.0
)

// Power derives a strength score in [0,1] from a team's current aggregates:
// 40% win rate, 30% capped set ratio and 30% points per match.
func Power(r StandingsRow) float64 {
	if r.Played <= 0 {
		return NeutralPower
	}
	played := float64(r.Played)
	winRate := float64(r.Wins) / played
	ratio := math.Min(setRatio(r.SetsWon, r.SetsLost)/SetRatioCap, 1)
	perMatch := math.Min(float64(r.Points)/played/MaxPointsPerMatch, 1)
	return winRateWeight*winRate + setRatioWeight*ratio + pointsWeight*perMatch
}

// HomeWinProbability is the chance that the home side wins when its power is
// boosted by homeAdvantage.
func HomeWinProbability(homePower, awayPower, homeAdvantage float64) float64 {
	h := homePower + homeAdvantage
	if h < 0 {
		h = 0
	}
	total := h + awayPower
	if total <= 0 {
		return 0.5
	}
	return h / total
}

// SimulateMatch draws a final score for a pairing whose home side wins with
// probability pHome. Lopsided pairings lean towards 3-0 and 3-1, even ones
// towards 3-2.
func SimulateMatch(rng *rand.Rand, pHome float64) Outcome {
	homeWin := rng.Float64() < pHome
	dominance := math.Abs(pHome-0.5) * 2

	loserSets := 2
	r := rng.Float64()
	switch {
	case r < 0.3+dominance*0.3:
		loserSets = 0
	case r < 0.6+dominance*0.2:
		loserSets = 1
	}

	var o Outcome
	if homeWin {
		o, _ = NewOutcome(SetsToWin, loserSets)
	} else {
		o, _ = NewOutcome(loserSets, SetsToWin)
	}
	return o
}
