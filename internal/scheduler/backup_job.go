package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/reliability"
)

const (
	backupTimeout       = 15 * time.Minute
	backupRetentionDays = 30
)

// BackupJob ships the scan database to R2 and rotates old archives
type BackupJob struct {
	backup *reliability.R2BackupService
	log    zerolog.Logger
}

// NewBackupJob creates the R2 backup job
func NewBackupJob(backup *reliability.R2BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup: backup,
		log:    log.With().Str("job", "r2_backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "r2_backup"
}

// Run uploads a fresh backup, then rotates. Rotation failure is logged
// but does not fail the job - the backup itself made it off-site.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.backup.RotateOldBackups(ctx, backupRetentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
