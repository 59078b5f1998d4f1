package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/results"
)

const (
	ResultsSyncJob     = "results_sync"
	resultsSyncTimeout = 5 * time.Minute
)

// ResultsSyncer is satisfied by results.Syncer.
type ResultsSyncer interface {
	SyncAll(ctx context.Context) ([]results.Report, error)
}

// RegisterResultsSync schedules the periodic scrape of every league that
// has a source page.
func RegisterResultsSync(s *Service, syncer ResultsSyncer, cronExpr string) error {
	if syncer == nil {
		return fmt.Errorf("results sync job requires a syncer")
	}
	jobLogger := log.With().
		Str("component", "results_sync_job").
		Str("job_name", ResultsSyncJob).
		Str("cron", cronExpr).
		Logger()

	_, err := s.AddJob(ResultsSyncJob, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultsSyncTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		reports, err := syncer.SyncAll(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Results sync finished with errors")
		}
		updated, scored := 0, 0
		for _, r := range reports {
			updated += len(r.Updated)
			scored += r.Scored
		}
		jobLogger.Info().
			Int("leagues", len(reports)).
			Int("updated", updated).
			Int("scored", scored).
			Msg("Results sync run")
	})
	return err
}
