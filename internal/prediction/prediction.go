// Package prediction implements the score-prediction game: users guess final
// set scores of upcoming matches and earn points once results are in.
package prediction

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/utakatalp/volley-simulator/internal/league"
)

const (
	ExactScorePoints    = 15
	CorrectWinnerPoints = 8
)

var (
	ErrInvalidPrediction = errors.New("invalid prediction")
	ErrInvalidPeriod     = errors.New("invalid leaderboard period")
)

// Prediction is one user's guess for one match. A match is identified by its
// league and pairing.
type Prediction struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	League         string    `json:"league"`
	GroupName      string    `json:"groupName"`
	HomeTeam       string    `json:"homeTeam"`
	AwayTeam       string    `json:"awayTeam"`
	MatchDate      string    `json:"matchDate,omitempty"`
	PredictedScore string    `json:"predictedScore"`
	Scored         bool      `json:"isScored"`
	PointsEarned   int       `json:"pointsEarned"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (p Prediction) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidPrediction)
	}
	if p.League == "" || p.HomeTeam == "" || p.AwayTeam == "" {
		return fmt.Errorf("%w: league, home team and away team are required", ErrInvalidPrediction)
	}
	if p.HomeTeam == p.AwayTeam {
		return fmt.Errorf("%w: a team cannot play itself", ErrInvalidPrediction)
	}
	if _, err := league.ParseScore(p.PredictedScore); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}
	return nil
}

// Points scores a prediction against the actual result.
func Points(predicted, actual string) (int, error) {
	p, err := league.ParseScore(predicted)
	if err != nil {
		return 0, err
	}
	a, err := league.ParseScore(actual)
	if err != nil {
		return 0, err
	}
	switch {
	case p == a:
		return ExactScorePoints, nil
	case p.HomeWin == a.HomeWin:
		return CorrectWinnerPoints, nil
	}
	return 0, nil
}

// Period selects which scored predictions count towards a leaderboard.
type Period string

const (
	PeriodTotal   Period = "total"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodTotal:
		return PeriodTotal, nil
	case PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Since is the start of the period containing now, in UTC. Weeks start on
// Monday. The total period starts at the zero time.
func (p Period) Since(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// Entry is one user's line on a leaderboard.
type Entry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	Points         int    `json:"points"`
	Predictions    int    `json:"predictions"`
	ExactScores    int    `json:"exactScores"`
	CorrectWinners int    `json:"correctWinners"`
}

type Leaderboard struct {
	Type    Period  `json:"type"`
	Entries []Entry `json:"leaderboard"`
	User    *Entry  `json:"userEntry,omitempty"`
}

// Rank orders entries by points, then exact scores, then user id, and
// numbers them from 1.
func Rank(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.ExactScores != b.ExactScores {
			return a.ExactScores > b.ExactScores
		}
		return a.UserID < b.UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// Build ranks all entries and keeps the first limit of them. The caller's own
// entry is attached even when it falls outside the limit.
func Build(period Period, entries []Entry, limit int, userID string) Leaderboard {
	Rank(entries)
	lb := Leaderboard{Type: period, Entries: entries}
	for i := range entries {
		if userID != "" && entries[i].UserID == userID {
			e := entries[i]
			lb.User = &e
			break
		}
	}
	if limit > 0 && len(entries) > limit {
		lb.Entries = entries[:limit]
	}
	if lb.Entries == nil {
		lb.Entries = []Entry{}
	}
	return lb
}
