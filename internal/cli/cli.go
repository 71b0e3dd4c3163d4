package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/club-websites/internal/check"
	"github.com/pfrederiksen/club-websites/internal/config"
	"github.com/pfrederiksen/club-websites/internal/logger"
	"github.com/pfrederiksen/club-websites/internal/probe"
	"github.com/pfrederiksen/club-websites/internal/region"
	"github.com/pfrederiksen/club-websites/internal/report"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagDataDir     string
	flagRegions     []string
	flagConfig      string
	flagTimeout     time.Duration
	flagUserAgent   string
	flagConcurrency int
	flagRate        float64
	flagJSON        string
	flagCSV         string
	flagNoCSV       bool
	flagQuiet       bool
	flagProgressBar bool
	flagVerbose     bool
	flagLogFile     string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "club-websites",
		Short: "Check the websites listed for golf clubs in regional GeoJSON files",
		Long: `A CLI tool that probes the website of every golf club listed in a set of
regional GeoJSON files and writes a status report as JSON and CSV.

Each website is requested once over HTTPS. If that fails below the HTTP
layer, the plain HTTP form is tried once instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCheck,
	}

	defaults := config.Default()

	cmd.Flags().StringVar(&flagDataDir, "data-dir", defaults.DataDir, "Directory holding the region files")
	cmd.Flags().StringSliceVar(&flagRegions, "regions", nil, "Region files to check, in order (default: all Swedish counties)")
	cmd.Flags().StringVar(&flagConfig, "config", "", "JSON configuration file")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", defaults.Timeout(), "Timeout for a single request")
	cmd.Flags().StringVar(&flagUserAgent, "user-agent", defaults.UserAgent, "User-Agent header sent with every request")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", defaults.Concurrency, "Number of websites checked at the same time")
	cmd.Flags().Float64Var(&flagRate, "rate", 0, "Maximum requests per second (0 = unlimited)")
	cmd.Flags().StringVar(&flagJSON, "json", defaults.JSONPath, "Path of the JSON report")
	cmd.Flags().StringVar(&flagCSV, "csv", defaults.CSVPath, "Path of the CSV report")
	cmd.Flags().BoolVar(&flagNoCSV, "no-csv", false, "Do not write the CSV report")
	cmd.Flags().BoolVar(&flagQuiet, "quiet", false, "Only print the summary")
	cmd.Flags().BoolVar(&flagProgressBar, "progress-bar", false, "Show a progress bar next to each club")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging and print metrics")
	cmd.Flags().StringVar(&flagLogFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// buildConfig layers defaults, the config file, the environment and the
// flags the user actually set.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("regions") {
		cfg.Regions = flagRegions
	}
	if flags.Changed("timeout") {
		cfg.SetTimeout(flagTimeout)
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = flagUserAgent
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if flags.Changed("rate") {
		cfg.RateLimit = flagRate
	}
	if flags.Changed("json") {
		cfg.JSONPath = flagJSON
	}
	if flags.Changed("csv") {
		cfg.CSVPath = flagCSV
		cfg.WriteCSV = true
	}
	if flagNoCSV {
		cfg.WriteCSV = false
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	if flagVerbose {
		cfg.LogLevel = string(logger.LevelDebug)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger installs the default logger for this run and returns a
// function that closes the log file, if any.
func setupLogger(cfg *config.Config, stderr io.Writer) (func(), error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	outputs := []io.Writer{stderr}
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		outputs = append(outputs, f)
		closeFn = func() { f.Close() }
	}

	logger.SetDefault(logger.New(level, outputs...).With(logger.Fields{
		"run_id": uuid.NewString(),
	}))
	return closeFn, nil
}

// runCheck is the main command logic
func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	previous := logger.Default()
	defer logger.SetDefault(previous)

	closeLog, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()
	logger.ResetMetrics()

	logger.Info("Starting check", logger.Fields{
		"data_dir":    cfg.DataDir,
		"regions":     len(cfg.Regions),
		"timeout":     cfg.Timeout().String(),
		"concurrency": cfg.Concurrency,
	})

	out := cmd.OutOrStdout()
	set := region.LoadAll(cfg.DataDir, cfg.Regions)
	WriteLoadIssues(out, set)

	prober := probe.New(cfg.Timeout(),
		probe.WithUserAgent(cfg.UserAgent),
		probe.WithRateLimit(cfg.RateLimit),
	)
	progress := NewProgress(out, flagQuiet, flagProgressBar)
	runner := check.NewRunner(prober, cfg.Concurrency, progress)

	result, err := runner.Run(cmd.Context(), set)
	if err != nil {
		return fmt.Errorf("checking websites: %w", err)
	}

	if err := report.Write(result.Records, cfg.JSONPath, cfg.CSVOutput()); err != nil {
		return err
	}

	WriteReportPaths(out, cfg.JSONPath, cfg.CSVOutput())
	if flagVerbose {
		WriteMetrics(cmd.ErrOrStderr(), logger.MetricsSnapshot())
	}

	return nil
}

// Execute runs the CLI. An interrupt cancels the run in progress.
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	cmd.Version = version
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(ExitError)
	}
}
