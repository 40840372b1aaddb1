package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/database"
	"github.com/aristath/optionscope/internal/modules/scans"
)

// retainRuns is how long scan history is kept before pruning
const retainRuns = 90 * 24 * time.Hour

// MaintenanceJob prunes old scan runs and checkpoints the WAL
type MaintenanceJob struct {
	db   *database.DB
	repo *scans.Repository
	log  zerolog.Logger
}

// NewMaintenanceJob creates the database maintenance job
func NewMaintenanceJob(db *database.DB, repo *scans.Repository, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:   db,
		repo: repo,
		log:  log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run prunes stale runs, then truncates the WAL
func (j *MaintenanceJob) Run() error {
	deleted, err := j.repo.DeleteOlderThan(retainRuns)
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.log.Info().Int("deleted_runs", deleted).Msg("Pruned scan history")
	}

	return j.db.WALCheckpoint("TRUNCATE")
}
