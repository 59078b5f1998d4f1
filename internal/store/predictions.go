package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/prediction"
)

var (
	ErrMatchPlayed      = errors.New("match already has a result")
	ErrPredictionScored = errors.New("prediction already scored")
)

const predictionColumns = `id, user_id, league, group_name, home_team, away_team, match_date,
	predicted_score, is_scored, points_earned, created_at, updated_at`

func scanPrediction(sc scanner) (prediction.Prediction, error) {
	var (
		p                prediction.Prediction
		created, updated int64
	)
	err := sc.Scan(&p.ID, &p.UserID, &p.League, &p.GroupName, &p.HomeTeam, &p.AwayTeam, &p.MatchDate,
		&p.PredictedScore, &p.Scored, &p.PointsEarned, &created, &updated)
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return p, err
}

// SavePrediction creates or replaces a user's prediction for a match. A
// prediction cannot be changed once the match has a result or the
// prediction has been scored.
func (s *Store) SavePrediction(ctx context.Context, p prediction.Prediction) (prediction.Prediction, error) {
	if err := p.Validate(); err != nil {
		return prediction.Prediction{}, err
	}

	const playedQ = `
		SELECT is_played FROM matches
		WHERE league = $1 AND home_team = $2 AND away_team = $3`
	var played bool
	err := s.DB.QueryRowContext(ctx, playedQ, p.League, p.HomeTeam, p.AwayTeam).Scan(&played)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return prediction.Prediction{}, fmt.Errorf("checking match: %w", err)
	}
	if played {
		return prediction.Prediction{}, ErrMatchPlayed
	}

	const upsert = `
		INSERT INTO predictions (id, user_id, league, group_name, home_team, away_team, match_date,
			predicted_score, is_scored, points_earned, scored_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, $10, $10)
		ON CONFLICT (user_id, league, home_team, away_team) DO UPDATE SET
			group_name      = excluded.group_name,
			match_date      = excluded.match_date,
			predicted_score = excluded.predicted_score,
			updated_at      = excluded.updated_at
		WHERE NOT predictions.is_scored`

	now := s.unixNow()
	res, err := s.DB.ExecContext(ctx, upsert,
		uuid.NewString(), p.UserID, p.League, p.GroupName, p.HomeTeam, p.AwayTeam, p.MatchDate,
		p.PredictedScore, false, now,
	)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("saving prediction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return prediction.Prediction{}, ErrPredictionScored
	}

	q := `SELECT ` + predictionColumns + ` FROM predictions
		WHERE user_id = $1 AND league = $2 AND home_team = $3 AND away_team = $4`
	saved, err := scanPrediction(s.DB.QueryRowContext(ctx, q, p.UserID, p.League, p.HomeTeam, p.AwayTeam))
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("reloading prediction: %w", err)
	}
	return saved, nil
}

// Predictions lists a user's predictions, newest first. Empty league or
// group filters match everything.
func (s *Store) Predictions(ctx context.Context, userID, leagueID, group string) ([]prediction.Prediction, error) {
	q := `SELECT ` + predictionColumns + ` FROM predictions
		WHERE user_id = $1 AND ($2 = '' OR league = $2) AND ($3 = '' OR group_name = $3)
		ORDER BY created_at DESC, id`

	rows, err := s.DB.QueryContext(ctx, q, userID, leagueID, group)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	out := []prediction.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating predictions: %w", err)
	}
	return out, nil
}

// DeletePrediction removes an unscored prediction.
func (s *Store) DeletePrediction(ctx context.Context, userID, leagueID, home, away string) error {
	const q = `
		DELETE FROM predictions
		WHERE user_id = $1 AND league = $2 AND home_team = $3 AND away_team = $4 AND NOT is_scored`

	res, err := s.DB.ExecContext(ctx, q, userID, leagueID, home, away)
	if err != nil {
		return fmt.Errorf("deleting prediction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("prediction %s-%s: %w", home, away, ErrNotFound)
	}
	return nil
}

// ScorePredictions awards points to the predictions of a finished match and
// returns how many changed. Predictions scored against an earlier result are
// scored again, keeping their original scoring time.
func (s *Store) ScorePredictions(ctx context.Context, leagueID, home, away, result string) (int, error) {
	const sel = `
		SELECT id, predicted_score, is_scored, points_earned FROM predictions
		WHERE league = $1 AND home_team = $2 AND away_team = $3`
	const upd = `
		UPDATE predictions
		SET points_earned = $1,
			scored_at = CASE WHEN is_scored THEN scored_at ELSE $2 END,
			is_scored = $3
		WHERE id = $4`

	now := s.unixNow()
	scored := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, sel, leagueID, home, away)
		if err != nil {
			return fmt.Errorf("querying predictions: %w", err)
		}
		type existing struct {
			id, score string
			scored    bool
			points    int
		}
		var todo []existing
		for rows.Next() {
			var p existing
			if err := rows.Scan(&p.id, &p.score, &p.scored, &p.points); err != nil {
				rows.Close()
				return fmt.Errorf("scanning prediction: %w", err)
			}
			todo = append(todo, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating predictions: %w", err)
		}

		for _, p := range todo {
			points, err := prediction.Points(p.score, result)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("prediction_id", p.id).Msg("Cannot score prediction")
				continue
			}
			if p.scored && p.points == points {
				continue
			}
			if p.scored {
				log.Ctx(ctx).Info().
					Str("prediction_id", p.id).
					Int("old_points", p.points).
					Int("points", points).
					Msg("Prediction rescored after result change")
			}
			if _, err := tx.ExecContext(ctx, upd, points, now, true, p.id); err != nil {
				return fmt.Errorf("scoring prediction %s: %w", p.id, err)
			}
			scored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return scored, nil
}

// Leaderboard aggregates scored predictions of the period containing the
// current time.
func (s *Store) Leaderboard(ctx context.Context, period prediction.Period, limit int, userID string) (prediction.Leaderboard, error) {
	const q = `
		SELECT user_id,
			SUM(points_earned),
			COUNT(*),
			SUM(CASE WHEN points_earned = $1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN points_earned = $2 THEN 1 ELSE 0 END)
		FROM predictions
		WHERE is_scored = $3 AND scored_at >= $4
		GROUP BY user_id`

	since := period.Since(s.now()).Unix()
	if period == prediction.PeriodTotal {
		since = 0
	}
	rows, err := s.DB.QueryContext(ctx, q,
		prediction.ExactScorePoints, prediction.CorrectWinnerPoints, true, since)
	if err != nil {
		return prediction.Leaderboard{}, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []prediction.Entry
	for rows.Next() {
		var e prediction.Entry
		if err := rows.Scan(&e.UserID, &e.Points, &e.Predictions, &e.ExactScores, &e.CorrectWinners); err != nil {
			return prediction.Leaderboard{}, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return prediction.Leaderboard{}, fmt.Errorf("iterating leaderboard: %w", err)
	}
	return prediction.Build(period, entries, limit, userID), nil
}
