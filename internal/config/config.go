// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Market data
	PolygonAPIKey string
	VolIndex      string // Volatility index ticker used for regime classification
	RegimeWindow  int    // Trading days of index history for percentile ranking

	// Pricing defaults when no provider supplies a better value
	RiskFreeRate         float64
	DefaultDividendYield float64

	// Scheduled scanning
	ScanSchedule string   // Cron expression (with seconds field)
	ScanSymbols  []string // Underlyings scanned on the schedule
	ScanWorkers  int

	// R2 off-site backup
	R2 *R2Config
}

// R2Config holds Cloudflare R2 credentials for database backups.
// Backups are skipped entirely when disabled.
type R2Config struct {
	Enabled         bool
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and make sure it exists
	dataDir := getEnv("OPTIONSCOPE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("GO_PORT", 8001),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		PolygonAPIKey:        getEnv("POLYGON_API_KEY", ""),
		VolIndex:             getEnv("VOL_INDEX", "I:VIX"),
		RegimeWindow:         getEnvAsInt("REGIME_WINDOW", 252),
		RiskFreeRate:         getEnvAsFloat("RISK_FREE_RATE", 0.045),
		DefaultDividendYield: getEnvAsFloat("DEFAULT_DIVIDEND_YIELD", 0.0),
		ScanSchedule:         getEnv("SCAN_SCHEDULE", "0 30 16 * * MON-FRI"), // After US close
		ScanSymbols:          getEnvAsList("SCAN_SYMBOLS", []string{"SPY", "QQQ", "IWM"}),
		ScanWorkers:          getEnvAsInt("SCAN_WORKERS", 8),
		R2: &R2Config{
			Enabled:         getEnvAsBool("R2_BACKUP_ENABLED", false),
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RegimeWindow < 2 {
		return fmt.Errorf("REGIME_WINDOW must be at least 2, got %d", c.RegimeWindow)
	}
	if c.ScanWorkers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1, got %d", c.ScanWorkers)
	}
	if c.R2.Enabled {
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" || c.R2.Bucket == "" {
			return fmt.Errorf("R2 backup enabled but credentials are incomplete")
		}
	}
	// Note: Polygon API key optional - offline endpoints still work without it
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
