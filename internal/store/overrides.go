package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/utakatalp/volley-simulator/internal/league"
)

// Overrides returns the saved scenario of a user for one group.
func (s *Store) Overrides(ctx context.Context, userID, leagueID, group string) (league.Overrides, error) {
	const q = `
		SELECT match_key, score
		FROM scenario_overrides
		WHERE user_id = $1 AND league = $2 AND group_name = $3`

	rows, err := s.DB.QueryContext(ctx, q, userID, leagueID, group)
	if err != nil {
		return nil, fmt.Errorf("querying overrides: %w", err)
	}
	defer rows.Close()

	out := league.Overrides{}
	for rows.Next() {
		var key, score string
		if err := rows.Scan(&key, &score); err != nil {
			return nil, fmt.Errorf("scanning override: %w", err)
		}
		out[key] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating overrides: %w", err)
	}
	return out, nil
}

// SaveOverrides replaces the saved scenario of a user for one group.
func (s *Store) SaveOverrides(ctx context.Context, userID, leagueID, group string, overrides league.Overrides) error {
	const del = `DELETE FROM scenario_overrides WHERE user_id = $1 AND league = $2 AND group_name = $3`
	const ins = `
		INSERT INTO scenario_overrides (user_id, league, group_name, match_key, score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	now := s.unixNow()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, del, userID, leagueID, group); err != nil {
			return fmt.Errorf("clearing overrides: %w", err)
		}
		for key, score := range overrides {
			if _, err := tx.ExecContext(ctx, ins, userID, leagueID, group, key, score, now); err != nil {
				return fmt.Errorf("saving override %s: %w", key, err)
			}
		}
		return nil
	})
}

// ResetOverrides deletes the saved scenario of a user for one group.
func (s *Store) ResetOverrides(ctx context.Context, userID, leagueID, group string) error {
	const q = `DELETE FROM scenario_overrides WHERE user_id = $1 AND league = $2 AND group_name = $3`
	if _, err := s.DB.ExecContext(ctx, q, userID, leagueID, group); err != nil {
		return fmt.Errorf("resetting overrides: %w", err)
	}
	return nil
}
