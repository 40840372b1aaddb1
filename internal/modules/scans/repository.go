package scans

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/optionscope/internal/database"
	"github.com/aristath/optionscope/internal/screener"
)

// Repository handles persistence for scan runs and their results.
// Database: scans.db (scan_runs + scan_results tables).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a scans repository and ensures the schema exists
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("repository", "scans").Logger(),
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scan_runs (
		uuid         TEXT PRIMARY KEY,
		screen       TEXT NOT NULL,
		symbols      TEXT NOT NULL,
		regime       TEXT NOT NULL DEFAULT '',
		index_level  REAL NOT NULL DEFAULT 0,
		percentile   REAL NOT NULL DEFAULT 0,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		result_count INTEGER NOT NULL DEFAULT 0,
		started_at   INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS scan_results (
		run_uuid          TEXT NOT NULL REFERENCES scan_runs(uuid) ON DELETE CASCADE,
		rank              INTEGER NOT NULL,
		symbol            TEXT NOT NULL,
		occ_symbol        TEXT NOT NULL DEFAULT '',
		option_type       TEXT NOT NULL,
		strike            REAL NOT NULL,
		expiration        INTEGER NOT NULL,
		dte               INTEGER NOT NULL,
		premium           REAL NOT NULL,
		delta             REAL NOT NULL,
		implied_vol       REAL NOT NULL,
		pop               REAL NOT NULL,
		breakeven         REAL NOT NULL,
		score             REAL NOT NULL,
		liquidity_score   REAL NOT NULL,
		pop_score         REAL NOT NULL,
		risk_reward_score REAL NOT NULL,
		time_value_score  REAL NOT NULL,
		macro_score       REAL NOT NULL,
		PRIMARY KEY (run_uuid, rank)
	);

	CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_scan_results_symbol ON scan_results(symbol);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create scans schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run in running state
func (r *Repository) CreateRun(run ScanRun) error {
	_, err := r.db.Exec(`
		INSERT INTO scan_runs (uuid, screen, symbols, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Screen),
		strings.Join(run.Symbols, ","),
		run.Status,
		run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}
	return nil
}

// CompleteRun marks the run finished and stores its shortlist atomically
func (r *Repository) CompleteRun(run ScanRun, results []ScanResult) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var completedAt interface{}
		if run.CompletedAt != nil {
			completedAt = run.CompletedAt.Unix()
		}

		_, err := tx.Exec(`
			UPDATE scan_runs
			SET status = ?,
				error = ?,
				regime = ?,
				index_level = ?,
				percentile = ?,
				result_count = ?,
				completed_at = ?
			WHERE uuid = ?
		`,
			run.Status,
			run.Error,
			run.Regime,
			run.IndexLevel,
			run.Percentile,
			len(results),
			completedAt,
			run.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update scan run: %w", err)
		}

		for _, res := range results {
			_, err := tx.Exec(`
				INSERT INTO scan_results
				(run_uuid, rank, symbol, occ_symbol, option_type, strike, expiration,
				 dte, premium, delta, implied_vol, pop, breakeven, score,
				 liquidity_score, pop_score, risk_reward_score, time_value_score, macro_score)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				res.RunID,
				res.Rank,
				res.Symbol,
				res.OCCSymbol,
				res.OptionType,
				res.Strike,
				res.Expiration.Unix(),
				res.DTE,
				res.Premium,
				res.Delta,
				res.ImpliedVol,
				res.POP,
				res.Breakeven,
				res.Score,
				res.LiquidityScore,
				res.POPScore,
				res.RiskRewardScore,
				res.TimeValueScore,
				res.MacroScore,
			)
			if err != nil {
				return fmt.Errorf("failed to insert scan result rank %d: %w", res.Rank, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("run_id", run.ID).
		Int("results", len(results)).
		Msg("Persisted scan run")

	return nil
}

// GetRun fetches one run by ID, or nil when it does not exist
func (r *Repository) GetRun(id string) (*ScanRun, error) {
	row := r.db.QueryRow(`
		SELECT uuid, screen, symbols, regime, index_level, percentile,
			   status, error, result_count, started_at, completed_at
		FROM scan_runs
		WHERE uuid = ?
	`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (r *Repository) ListRuns(limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT uuid, screen, symbols, regime, index_level, percentile,
			   status, error, result_count, started_at, completed_at
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetResults returns a run's shortlist in rank order
func (r *Repository) GetResults(runID string) ([]ScanResult, error) {
	rows, err := r.db.Query(`
		SELECT run_uuid, rank, symbol, occ_symbol, option_type, strike, expiration,
			   dte, premium, delta, implied_vol, pop, breakeven, score,
			   liquidity_score, pop_score, risk_reward_score, time_value_score, macro_score
		FROM scan_results
		WHERE run_uuid = ?
		ORDER BY rank ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan results: %w", err)
	}
	defer rows.Close()

	var results []ScanResult
	for rows.Next() {
		var res ScanResult
		var expirationUnix int64
		err := rows.Scan(
			&res.RunID,
			&res.Rank,
			&res.Symbol,
			&res.OCCSymbol,
			&res.OptionType,
			&res.Strike,
			&expirationUnix,
			&res.DTE,
			&res.Premium,
			&res.Delta,
			&res.ImpliedVol,
			&res.POP,
			&res.Breakeven,
			&res.Score,
			&res.LiquidityScore,
			&res.POPScore,
			&res.RiskRewardScore,
			&res.TimeValueScore,
			&res.MacroScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		res.Expiration = time.Unix(expirationUnix, 0).UTC()
		results = append(results, res)
	}
	return results, rows.Err()
}

// DeleteOlderThan removes runs (and their results, via cascade) older than
// maxAge. Returns the number of runs deleted.
func (r *Repository) DeleteOlderThan(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Unix()

	result, err := r.db.Exec(`DELETE FROM scan_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old scan runs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	count := int(rowsAffected)
	if count > 0 {
		r.log.Info().
			Int("deleted_count", count).
			Dur("max_age", maxAge).
			Msg("Deleted stale scan runs")
	}

	return count, nil
}

// scanRun maps one scan_runs row through the given Scan function
func scanRun(scan func(dest ...interface{}) error) (*ScanRun, error) {
	var run ScanRun
	var screen, symbols string
	var startedAtUnix sql.NullInt64
	var completedAtUnix sql.NullInt64

	err := scan(
		&run.ID,
		&screen,
		&symbols,
		&run.Regime,
		&run.IndexLevel,
		&run.Percentile,
		&run.Status,
		&run.Error,
		&run.ResultCount,
		&startedAtUnix,
		&completedAtUnix,
	)
	if err != nil {
		return nil, err
	}

	run.Screen = screener.ScreenType(screen)
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	if startedAtUnix.Valid {
		run.StartedAt = time.Unix(startedAtUnix.Int64, 0).UTC()
	}
	if completedAtUnix.Valid {
		t := time.Unix(completedAtUnix.Int64, 0).UTC()
		run.CompletedAt = &t
	}

	return &run, nil
}
