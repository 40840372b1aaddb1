// optionscope server - options screening and analytics service.
//
// Startup sequence:
//  1. Load configuration from environment (.env supported)
//  2. Initialize structured logging
//  3. Open the scans database (WAL mode, standard profile)
//  4. Wire providers (Polygon market data, static rates/dividends)
//  5. Build the screener and scan service
//  6. Register background jobs (scheduled scans, maintenance, R2 backup)
//  7. Start the HTTP server and wait for shutdown signal
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/optionscope/internal/clients/polygon"
	"github.com/aristath/optionscope/internal/config"
	"github.com/aristath/optionscope/internal/database"
	pricinghandlers "github.com/aristath/optionscope/internal/modules/pricing/handlers"
	regimehandlers "github.com/aristath/optionscope/internal/modules/regime/handlers"
	"github.com/aristath/optionscope/internal/modules/scans"
	scanshandlers "github.com/aristath/optionscope/internal/modules/scans/handlers"
	"github.com/aristath/optionscope/internal/providers"
	"github.com/aristath/optionscope/internal/reliability"
	"github.com/aristath/optionscope/internal/scheduler"
	"github.com/aristath/optionscope/internal/screener"
	"github.com/aristath/optionscope/internal/server"
	"github.com/aristath/optionscope/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting optionscope")

	// Scans database
	scansDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "scans.db"),
		Profile: database.ProfileStandard,
		Name:    "scans",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open scans database")
	}
	defer scansDB.Close()

	scansRepo, err := scans.NewRepository(scansDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scans repository")
	}

	// Market data providers. Without a Polygon key the offline endpoints
	// still work; live scans and the regime endpoint report unavailable.
	var chains providers.ChainProvider
	var history providers.IndexHistoryProvider
	if cfg.PolygonAPIKey != "" {
		polygonClient := polygon.New(cfg.PolygonAPIKey, log)
		chains = polygonClient
		history = polygonClient
	} else {
		log.Warn().Msg("POLYGON_API_KEY not set, live market data disabled")
	}

	rates := providers.StaticRateProvider{Rate: cfg.RiskFreeRate}
	dividends := providers.StaticDividendProvider{Default: cfg.DefaultDividendYield}

	// Scan pipeline
	scr := screener.New(screener.DefaultWeights(), cfg.ScanWorkers, log)
	scanService := scans.NewService(chains, rates, dividends, history, scr, scansRepo, scans.ServiceConfig{
		VolIndex:       cfg.VolIndex,
		RegimeWindow:   cfg.RegimeWindow,
		DefaultSymbols: cfg.ScanSymbols,
	}, log)

	// HTTP server
	srv := server.New(server.Config{
		Log:             log,
		ScansDB:         scansDB,
		Config:          cfg,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		PricingHandlers: pricinghandlers.NewHandler(log),
		RegimeHandlers:  regimehandlers.NewHandler(history, cfg.VolIndex, cfg.RegimeWindow, log),
		ScanHandlers:    scanshandlers.NewHandler(scanService, log),
	})

	// Background jobs
	sched := scheduler.New(log)

	if chains != nil {
		scanJob := scheduler.NewScanJob(scanService, nil, log)
		if err := sched.AddJob(cfg.ScanSchedule, scanJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ScanSchedule).Msg("Failed to register scan job")
		}
	}

	maintenanceJob := scheduler.NewMaintenanceJob(scansDB, scansRepo, log)
	if err := sched.AddJob("0 0 3 * * *", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	if cfg.R2.Enabled {
		r2Client, err := reliability.NewR2Client(cfg.R2, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize R2 client")
		}
		backupService := reliability.NewR2BackupService(r2Client, scansDB, cfg.DataDir, log)
		backupJob := scheduler.NewBackupJob(backupService, log)
		if err := sched.AddJob("0 30 3 * * *", backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
