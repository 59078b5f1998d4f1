package store

import (
	"context"
	"fmt"
)

// Stats are the totals shown on the admin dashboard. Users counts everyone
// who has made at least one prediction.
type Stats struct {
	Users             int `json:"users"`
	Predictions       int `json:"predictions"`
	ScoredPredictions int `json:"scoredPredictions"`
	PlayedMatches     int `json:"results"`
	Matches           int `json:"matches"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(DISTINCT user_id) FROM predictions),
			(SELECT COUNT(*) FROM predictions),
			(SELECT COUNT(*) FROM predictions WHERE is_scored = $1),
			(SELECT COUNT(*) FROM matches WHERE is_played = $1),
			(SELECT COUNT(*) FROM matches)`

	var st Stats
	err := s.DB.QueryRowContext(ctx, q, true).Scan(
		&st.Users, &st.Predictions, &st.ScoredPredictions, &st.PlayedMatches, &st.Matches)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	return st, nil
}
