package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voltatlas/cutout/internal/config"
	"github.com/voltatlas/cutout/internal/db"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/spf13/cobra"
)

var (
	cutoutDir string
	inputDir  string
	dbPath    string
	workers   int
	gebcoPath string
	feedURLs  []string
	noTUI     bool
	logFormat string
	logLevel  string
	logOutput string

	// Populated in PersistentPreRunE.
	rootLogger *slog.Logger
	dbConn     *sql.DB
	appConfig  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cutout",
	Short: "Fetch gridded weather archives and prepare them into cutouts.",
	Long: `Cutout converts gridded weather-data archives into prepared cutouts:
normalized, monthly-chunked parquet archives over a fixed spatial grid.

The primary command is 'prepare', which runs the full extraction, regridding
and merge pipeline for one cutout specification. 'fetch' downloads input
archives, 'preview' extracts a single month in memory, 'inspect' summarizes
a prepared cutout and 'state' shows the event history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr
		switch strings.ToLower(logOutput) {
		case "", "stderr":
		case "stdout":
			logWriter = os.Stdout
		default:
			f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log file %s: %w", logOutput, err)
			}
			logWriter = f
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)

		appConfig = config.Config{
			CutoutDir: cutoutDir,
			InputDir:  inputDir,
			DbPath:    dbPath,
			Workers:   workers,
			GebcoPath: gebcoPath,
			FeedURLs:  feedURLs,
			NoTUI:     noTUI,
		}
		if appConfig.CutoutDir == "" || appConfig.InputDir == "" {
			return fmt.Errorf("--cutout-dir and --input-dir flags are required")
		}
		if err := os.MkdirAll(appConfig.CutoutDir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", appConfig.CutoutDir, err)
		}

		if appConfig.DbPath != "" {
			if appConfig.DbPath != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(appConfig.DbPath), 0o755); err != nil {
					return fmt.Errorf("create database directory: %w", err)
				}
			}
			var err error
			dbConn, err = sql.Open("duckdb", appConfig.DbPath)
			if err != nil {
				return fmt.Errorf("open state database %s: %w", appConfig.DbPath, err)
			}
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := dbConn.PingContext(pingCtx); err != nil {
				dbConn.Close()
				return fmt.Errorf("ping state database %s: %w", appConfig.DbPath, err)
			}
			if err := db.InitializeSchema(dbConn); err != nil {
				dbConn.Close()
				return fmt.Errorf("initialize state database schema: %w", err)
			}
			rootLogger.Debug("state database ready", slog.String("path", appConfig.DbPath))
		} else {
			rootLogger.Debug("state database disabled")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("failed to close state database cleanly", "error", err)
			}
		}
		return nil
	},
}

// Execute wires up the subcommands and runs the CLI.
func Execute() {
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(stateCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("command failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "command failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cutoutDir, "cutout-dir", "c", "./cutouts", "Parent directory for cutout directories")
	rootCmd.PersistentFlags().StringVarP(&inputDir, "input-dir", "i", "./archive", "Local archive of fetched input files")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "state-db", "d", "./cutout_state.duckdb", "State database file, empty disables the event log")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Extraction pool size, 0 uses all CPUs")
	rootCmd.PersistentFlags().StringVar(&gebcoPath, "gebco-path", "", "Elevation raster for the height pre-step")
	rootCmd.PersistentFlags().StringSliceVar(&feedURLs, "feed-url", nil, "Feed pages to discover input files on (can specify multiple)")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress view")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.1.0"
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}
