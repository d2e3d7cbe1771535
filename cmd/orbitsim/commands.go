package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/san-kum/orbitsim/internal/analysis"
	"github.com/san-kum/orbitsim/internal/automation"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/experiment"
	"github.com/san-kum/orbitsim/internal/export"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/optim"
	"github.com/san-kum/orbitsim/internal/server"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/storage"
	"github.com/san-kum/orbitsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	engine, err := sim.NewEngine(loadRegistry(cfg, logger), cfg.Engine())
	if err != nil {
		return err
	}
	engine.SetLogger(logger.WithPrefix("engine"))

	opts := server.Options{
		Addr:          cfg.Server.Addr,
		StatePath:     cfg.StatePath,
		StaticDir:     cfg.Server.StaticDir,
		RateLimit:     cfg.Server.RateLimit,
		Burst:         cfg.Server.Burst,
		PublishBuffer: cfg.Server.PublishBuffer,
		AutocertHost:  cfg.Server.AutocertHost,
		CertDir:       cfg.Server.CertDir,
		Logger:        logger.WithPrefix("server"),
	}
	if cfg.Server.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector := metrics.NewCollector(reg)
		engine.AddObserver(collector)
		opts.Metrics = collector
		opts.Gatherer = reg
	}
	srv := server.New(engine, opts)

	clock := sim.NewClock(engine, cfg.TickInterval)
	clock.SetLogger(logger.WithPrefix("clock"))
	clock.AddSink(srv.Hub())

	ctx, cancel := signalContext()
	defer cancel()

	clockErr := make(chan error, 1)
	go func() { clockErr <- clock.Run(ctx) }()

	err = srv.ListenAndServe(ctx)
	cancel()
	if cerr := ignoreCanceled(<-clockErr); err == nil {
		err = cerr
	}
	return err
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The viewer owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile("orbitsim.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := logging.New(cfg.LogLevel, logFile)

	engine, err := sim.NewEngine(loadRegistry(cfg, logger), cfg.Engine())
	if err != nil {
		return err
	}
	engine.SetLogger(logger)

	return viz.Run(engine, viz.Options{
		Interval:  cfg.TickInterval,
		StatePath: cfg.StatePath,
		Viewport:  r2.Vec{X: cfg.Viewport.Width, Y: cfg.Viewport.Height},
		Logger:    logger,
	})
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	reg := loadRegistry(cfg, logger)

	exp, err := experiment.New(experiment.Config{Bodies: reg.All(), Sim: cfg.Engine(), Ticks: ticks})
	if err != nil {
		return err
	}
	exp.SetLogger(logger)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %d ticks with %s...\n", ticks, cfg.Integrator)
	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("run ended early", "err", runErr)
	}

	fmt.Printf("completed in %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("ticks: %d  sim time: %.1f days\n", result.Ticks, result.SimTime/86400)
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(result.Metrics) {
		fmt.Printf("  %-16s %.6g\n", name, result.Metrics[name])
	}
	if len(result.Energy) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(result.Energy, asciigraph.Height(10), asciigraph.Width(60), asciigraph.Caption("total energy (J)")))
	}
	printElements(result.Bodies)

	if saveRun {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(storage.RunMetadata{
			Source:     source(cfg),
			Integrator: result.Integrator,
			Dt:         cfg.Dt,
			Ticks:      result.Ticks,
			SimTime:    result.SimTime,
			Metrics:    result.Metrics,
		}, result.Bodies)
		if err != nil {
			return err
		}
		fmt.Printf("\nrun id: %s\n", id)
	}
	return ignoreCanceled(runErr)
}

func printElements(bodies []dynamo.Body) {
	report := analysis.Report(bodies)
	if len(report) == 0 {
		return
	}
	fmt.Println("\norbits:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  BODY\tPRIMARY\tA (AU)\tE\tPERIOD (d)")
	for _, el := range report {
		if !el.Bound {
			fmt.Fprintf(w, "  %s\t%s\tunbound\t%.3f\t-\n", el.Body, el.Primary, el.Eccentricity)
			continue
		}
		fmt.Fprintf(w, "  %s\t%s\t%.4f\t%.4f\t%.1f\n", el.Body, el.Primary, el.SemiMajorAxis/1.496e11, el.Eccentricity, el.Period/86400)
	}
	w.Flush()
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	names := args
	if len(names) == 0 {
		names = integrators.Names()
	}

	ctx, cancel := signalContext()
	defer cancel()

	reg := loadRegistry(cfg, logger)
	results, err := experiment.Compare(ctx, experiment.Config{Bodies: reg.All(), Sim: cfg.Engine(), Ticks: ticks}, names, logger)
	if err != nil {
		logger.Warn("some runs failed", "err", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tTICKS\tENERGY DRIFT\tMOMENTUM DRIFT\tMIN SEPARATION\tWALL")
	for i, r := range results {
		if r == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", names[i])
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.3e\t%.3e\t%.3e\t%v\n",
			r.Integrator, r.Ticks,
			r.Metrics["energy_drift"], r.Metrics["momentum_drift"], r.Metrics["min_separation"],
			r.Duration.Round(time.Millisecond))
	}
	w.Flush()

	if csvPath != "" {
		f, ferr := os.Create(csvPath)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		if ferr := export.ResultsToCSV(f, results); ferr != nil {
			return ferr
		}
		fmt.Printf("\nwrote %s\n", csvPath)
	}
	return err
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	dts := []float64{60, 300, 900, 1800, 3600, 7200, 21600, 43200, 86400}
	if len(args) > 0 {
		dts = dts[:0]
		for _, a := range args {
			v, perr := strconv.ParseFloat(a, 64)
			if perr != nil {
				return fmt.Errorf("dt %q: %w", a, perr)
			}
			dts = append(dts, v)
		}
	}

	bodies := loadRegistry(cfg, logger).All()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		c := cfg.Engine()
		c.Dt = params["dt"]
		return experiment.New(experiment.Config{Bodies: bodies, Sim: c, Ticks: ticks})
	}

	ctx, cancel := signalContext()
	defer cancel()

	g := optim.NewGridSearch([]string{"dt"}, [][]float64{dts})
	best, _, trials, err := g.Search(ctx, build, optim.LargestStableDt(tolerance))
	if err != nil {
		return ignoreCanceled(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DT (s)\tRESULT")
	for _, t := range trials {
		switch {
		case t.Err != nil:
			fmt.Fprintf(w, "%g\tfailed: %v\n", t.Params["dt"], t.Err)
		case math.IsInf(t.Score, 1):
			fmt.Fprintf(w, "%g\tdrift over %g\n", t.Params["dt"], tolerance)
		default:
			fmt.Fprintf(w, "%g\tok\n", t.Params["dt"])
		}
	}
	w.Flush()

	if best == nil {
		fmt.Printf("\nno dt kept %s within %g\n", cfg.Integrator, tolerance)
		return nil
	}
	fmt.Printf("\nlargest stable dt for %s: %g s\n", cfg.Integrator, best["dt"])
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if sc.Preset != "" && !cmd.Flags().Changed("preset") && !cmd.Flags().Changed("snapshot") {
		_ = cmd.Flags().Set("preset", sc.Preset)
	}
	if sc.Integrator != "" && !cmd.Flags().Changed("integrator") {
		_ = cmd.Flags().Set("integrator", sc.Integrator)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	engine, err := sim.NewEngine(loadRegistry(cfg, logger), cfg.Engine())
	if err != nil {
		return err
	}
	engine.SetLogger(logger)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("scenario %s: %s\n", sc.Name, sc.Description)
	rep, err := automation.Run(ctx, sc, engine, logger)
	if rep == nil {
		return err
	}

	fmt.Printf("ticks: %d  steps applied: %d  failed: %d\n", rep.Ticks, rep.Applied, len(rep.Errors))
	for _, se := range rep.Errors {
		fmt.Printf("  %v\n", se)
	}
	if len(rep.Energy) > 1 {
		fmt.Println(asciigraph.Plot(rep.Energy, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("total energy (J)")))
	}
	return ignoreCanceled(err)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tSOURCE\tINTEGRATOR\tTICKS\tBODIES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.ID, r.Timestamp.Format(time.DateTime), r.Source, r.Integrator, r.Ticks, r.Bodies)
	}
	return w.Flush()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	bodies, err := storage.New(cfg.DataDir).LoadBodies(args[0])
	if err != nil {
		return err
	}

	out := outPath
	if out == "" {
		out = args[0] + ".svg"
	}
	if err := export.WriteSVG(out, bodies, svgWidth, svgHeight); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bodies)\n", out, len(bodies))
	return nil
}

func saveSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	out := outPath
	if out == "" {
		out = cfg.StatePath
	}
	reg := loadRegistry(cfg, logger)
	if err := storage.WriteSnapshot(out, reg.All()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(out)
	fmt.Printf("wrote %d bodies to %s\n", reg.Len(), abs)
	return nil
}
