package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/modules/scans"
	"github.com/aristath/optionscope/internal/screener"
)

// scanTimeout bounds one full scheduled scan, chains included
const scanTimeout = 10 * time.Minute

// ScanJob runs the default screens against the configured universe
type ScanJob struct {
	service *scans.Service
	screens []screener.ScreenType
	log     zerolog.Logger
}

// NewScanJob creates the scheduled scan job. It runs every configured
// screen type back to back so each run gets its own persisted record.
func NewScanJob(service *scans.Service, screens []screener.ScreenType, log zerolog.Logger) *ScanJob {
	if len(screens) == 0 {
		screens = []screener.ScreenType{screener.OTMCalls, screener.OTMPuts}
	}
	return &ScanJob{
		service: service,
		screens: screens,
		log:     log.With().Str("job", "scheduled_scan").Logger(),
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "scheduled_scan"
}

// Run executes one scan per screen type. A failed screen does not stop
// the remaining ones; the last error is reported.
func (j *ScanJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	var lastErr error
	for _, screen := range j.screens {
		outcome, err := j.service.RunScan(ctx, nil, screener.DefaultCriteria(screen))
		if err != nil {
			j.log.Error().Err(err).Str("screen", string(screen)).Msg("Scheduled scan failed")
			lastErr = err
			continue
		}
		j.log.Info().
			Str("screen", string(screen)).
			Str("run_id", outcome.Run.ID).
			Int("results", len(outcome.Opportunities)).
			Msg("Scheduled scan finished")
	}
	return lastErr
}
