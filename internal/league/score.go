package league

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SetsToWin is the number of sets that decides a best-of-five match.
const SetsToWin = 3

// Scores lists every valid final set score, home side first.
var Scores = []string{"3-0", "3-1", "3-2", "2-3", "1-3", "0-3"}

var ErrMalformedScore = errors.New("malformed score")

// Outcome is a parsed final score with the league points it awards.
type Outcome struct {
	HomeSets   int  `json:"homeSets"`
	AwaySets   int  `json:"awaySets"`
	HomePoints int  `json:"homePoints"`
	AwayPoints int  `json:"awayPoints"`
	HomeWin    bool `json:"homeWin"`
}

// ParseScore parses an "H-A" set score. Exactly one side must have won three
// sets and the other side must have between zero and two.
func ParseScore(score string) (Outcome, error) {
	parts := strings.Split(strings.TrimSpace(score), "-")
	if len(parts) != 2 {
		return Outcome{}, fmt.Errorf("%w: %q", ErrMalformedScore, score)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %q", ErrMalformedScore, score)
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %q", ErrMalformedScore, score)
	}
	return NewOutcome(h, a)
}

// NewOutcome applies the league point rule to a set score:
// 3-0 and 3-1 give the winner 3 points, 3-2 gives 2 to the winner and 1 to
// the loser.
func NewOutcome(homeSets, awaySets int) (Outcome, error) {
	o := Outcome{HomeSets: homeSets, AwaySets: awaySets}
	switch {
	case homeSets == SetsToWin && awaySets >= 0 && awaySets < SetsToWin:
		o.HomeWin = true
		o.HomePoints, o.AwayPoints = pointsFor(awaySets)
	case awaySets == SetsToWin && homeSets >= 0 && homeSets < SetsToWin:
		o.AwayPoints, o.HomePoints = pointsFor(homeSets)
	default:
		return Outcome{}, fmt.Errorf("%w: %d-%d", ErrMalformedScore, homeSets, awaySets)
	}
	return o, nil
}

// String formats the outcome back into "H-A".
func (o Outcome) String() string {
	return fmt.Sprintf("%d-%d", o.HomeSets, o.AwaySets)
}

func pointsFor(loserSets int) (winner, loser int) {
	if loserSets == SetsToWin-1 {
		return 2, 1
	}
	return 3, 0
}

// Overrides maps a match identity to a hypothetical score. Identities are
// "home|||away", "home-away" or the numeric match id.
type Overrides map[string]string

// MatchKey builds the canonical override identity for a pairing.
func MatchKey(home, away string) string {
	return home + "|||" + away
}

// Lookup finds the override for m under any accepted identity.
func (o Overrides) Lookup(m Match) (string, bool) {
	if len(o) == 0 {
		return "", false
	}
	if s, ok := o[m.Key()]; ok {
		return s, true
	}
	if s, ok := o[m.HomeTeam+"-"+m.AwayTeam]; ok {
		return s, true
	}
	if m.ID != 0 {
		if s, ok := o[strconv.Itoa(m.ID)]; ok {
			return s, true
		}
	}
	return "", false
}

// Clone returns an independent copy.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

var turkishFold = strings.NewReplacer("İ", "I", "ı", "I", "i", "I", "Ş", "S", "ş", "S", "Ğ", "G", "ğ", "G",
	"Ü", "U", "ü", "U", "Ö", "O", "ö", "O", "Ç", "C", "ç", "C")

// NormalizeTeamName folds Turkish letters, case and punctuation so that
// differently spelled names of the same club compare equal.
func NormalizeTeamName(name string) string {
	folded := strings.ToUpper(turkishFold.Replace(name))
	var b strings.Builder
	for _, r := range folded {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
