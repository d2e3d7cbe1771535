package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	dataDir    string
	snapshot   string
	preset     string
	integrator string
	dt         float64
	timeScale  float64

	addr       string
	ticks      int
	outPath    string
	csvPath    string
	svgWidth   int
	svgHeight  int
	saveRun    bool
	noMetrics  bool
	autocertOn string
	tolerance  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "orbitsim",
		Short:         "2D gravitational orbit simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLive,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "run store directory")
	pf.StringVar(&snapshot, "snapshot", "", "body snapshot to load (overrides preset)")
	pf.StringVar(&preset, "preset", config.DefaultPreset, "built-in body set")
	pf.StringVar(&integrator, "integrator", "rk4", "integrator")
	pf.Float64Var(&dt, "dt", config.DefaultDt, "seconds per integration step")
	pf.Float64Var(&timeScale, "time-scale", 1, "initial time scale")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the clock and serve the HTTP/websocket API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	serveCmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable /metrics")
	serveCmd.Flags().StringVar(&autocertOn, "autocert-host", "", "serve TLS for this host via ACME")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "terminal viewer",
		RunE:  runLive,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run headless for a number of ticks and store the result",
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&ticks, "ticks", 1000, "ticks to run")
	runCmd.Flags().BoolVar(&saveRun, "save", true, "save the run to the store")

	compareCmd := &cobra.Command{
		Use:   "compare [integrator...]",
		Short: "compare integrators on the same bodies",
		RunE:  runCompare,
	}
	compareCmd.Flags().IntVar(&ticks, "ticks", 1000, "ticks per run")
	compareCmd.Flags().StringVar(&csvPath, "csv", "", "also write results as CSV")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "play a scripted scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in body sets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				p, _ := config.GetPreset(name)
				fmt.Printf("  %-12s %s\n", name, p.Description)
			}
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a stored run's trajectories as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 1000, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 1000, "image height")

	tuneCmd := &cobra.Command{
		Use:   "tune [dt...]",
		Short: "find the largest dt that keeps energy drift within tolerance",
		RunE:  runTune,
	}
	tuneCmd.Flags().IntVar(&ticks, "ticks", 1000, "ticks per trial")
	tuneCmd.Flags().Float64Var(&tolerance, "tol", 1e-6, "maximum relative energy drift")

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "write the configured initial bodies as a snapshot",
		RunE:  saveSnapshot,
	}
	saveCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default state_path)")

	rootCmd.AddCommand(serveCmd, liveCmd, runCmd, compareCmd, scenarioCmd, presetsCmd, listCmd, exportSVGCmd, tuneCmd, saveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file with flags; flags win only when set
// explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || configFile == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("snapshot") {
		cfg.Snapshot = snapshot
	}
	if flags.Changed("preset") {
		cfg.Preset = preset
		cfg.Snapshot = ""
		if p, ok := config.GetPreset(preset); ok {
			cfg.Scale = p.Scale
			cfg.Track = p.Track
		}
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time-scale") {
		cfg.TimeScale = timeScale
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		cfg.Server.Addr = addr
	}
	if f := flags.Lookup("no-metrics"); f != nil && f.Changed {
		cfg.Server.Metrics = !noMetrics
	}
	if f := flags.Lookup("autocert-host"); f != nil && f.Changed {
		cfg.Server.AutocertHost = autocertOn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	return logging.New(cfg.LogLevel, os.Stderr)
}

// loadRegistry builds the initial registry. A snapshot that cannot be
// loaded is logged and the engine starts empty.
func loadRegistry(cfg *config.Config, logger *log.Logger) *dynamo.Registry {
	var bodies []dynamo.Body
	if cfg.Snapshot != "" {
		loaded, report, err := storage.ReadSnapshot(cfg.Snapshot, logger)
		if err != nil {
			logger.Error("snapshot load failed, starting with no bodies", "path", cfg.Snapshot, "err", err)
			return dynamo.NewRegistry()
		}
		if report.Lossy() {
			logger.Warn("snapshot loaded with skipped records", "loaded", report.Loaded, "skipped", len(report.Skipped))
		}
		bodies = loaded
	} else {
		p, ok := config.GetPreset(cfg.Preset)
		if !ok {
			logger.Error("unknown preset, starting with no bodies", "preset", cfg.Preset)
			return dynamo.NewRegistry()
		}
		bodies = p.Bodies()
	}

	reg, err := dynamo.NewRegistryFrom(bodies)
	if err != nil {
		logger.Error("invalid initial bodies, starting with no bodies", "err", err)
		return dynamo.NewRegistry()
	}
	logger.Info("bodies loaded", "count", reg.Len(), "source", source(cfg))
	return reg
}

func source(cfg *config.Config) string {
	if cfg.Snapshot != "" {
		return cfg.Snapshot
	}
	return "preset:" + cfg.Preset
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
