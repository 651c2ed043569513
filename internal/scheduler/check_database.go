package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/database"
)

// walWarnFrames is the WAL size, in frames, above which a checkpoint that
// could not complete is reported
const walWarnFrames = 1000

// CheckDatabaseJob verifies the calendar database and folds its WAL back
// into the main file
type CheckDatabaseJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCheckDatabaseJob creates a new CheckDatabaseJob
func NewCheckDatabaseJob(db *database.DB, log zerolog.Logger) *CheckDatabaseJob {
	return &CheckDatabaseJob{
		db:  db,
		log: log.With().Str("job", "check_database").Logger(),
	}
}

// Name returns the job name
func (j *CheckDatabaseJob) Name() string {
	return "check_database"
}

// Run executes the integrity check followed by a WAL checkpoint
func (j *CheckDatabaseJob) Run(ctx context.Context) error {
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Database integrity check failed")
		return fmt.Errorf("database %s is unhealthy: %w", j.db.Name(), err)
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, walFrames, checkpointed int
	err := j.db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &walFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", j.db.Name(), err)
	}

	if busy != 0 && walFrames > walWarnFrames {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_frames", walFrames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large and the checkpoint was blocked")
	} else {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", walFrames).
			Int("checkpointed", checkpointed).
			Msg("WAL checkpoint completed")
	}

	return nil
}
