package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/bus"
	"github.com/petal-labs/cuke/core"
	"github.com/petal-labs/cuke/glue"
	"github.com/petal-labs/cuke/loader"
	cukeotel "github.com/petal-labs/cuke/otel"
	"github.com/petal-labs/cuke/runner"
)

// suiteConfig is the merged run configuration: profile values overlaid
// with explicitly set flags.
type suiteConfig struct {
	paths  []string
	tags   []string
	format string
	naming core.NamingConvention
	store  string
	dryRun bool
	otel   bool
}

// resolveSuiteConfig loads the run profile and overlays command flags.
// Flags that were set explicitly always win over profile values.
func resolveSuiteConfig(cmd *cobra.Command, args []string) (*suiteConfig, error) {
	profilePath, _ := cmd.Flags().GetString("profile")
	if profilePath == "" {
		profilePath = loader.DefaultProfilePath
	}
	profile, err := loader.LoadProfile(profilePath)
	if err != nil {
		return nil, exitError(exitUsage, "%v", err)
	}

	cfg := &suiteConfig{
		paths:  profile.Paths,
		tags:   profile.Tags,
		format: profile.Format,
		naming: core.ParseNamingConvention(profile.Naming),
		store:  profile.Store,
	}
	if len(args) > 0 {
		cfg.paths = args
	}
	if cmd.Flags().Changed("tags") {
		cfg.tags, _ = cmd.Flags().GetStringSlice("tags")
	}
	if cmd.Flags().Changed("format") {
		cfg.format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("naming") {
		naming, _ := cmd.Flags().GetString("naming")
		cfg.naming = core.ParseNamingConvention(naming)
	}
	if cmd.Flags().Changed("store") {
		cfg.store, _ = cmd.Flags().GetString("store")
	}
	if f := cmd.Flags().Lookup("dry-run"); f != nil {
		cfg.dryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	if f := cmd.Flags().Lookup("otel"); f != nil {
		cfg.otel, _ = cmd.Flags().GetBool("otel")
	}

	if len(cfg.paths) == 0 {
		return nil, exitError(exitUsage, "no feature paths given (arguments or profile paths)")
	}
	return cfg, nil
}

// loadScenarios discovers and parses the configured features, applying
// the tag filter.
func loadScenarios(cfg *suiteConfig) ([]core.Scenario, error) {
	files, err := loader.DiscoverFeatures(cfg.paths)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, exitError(exitFileNotFound, "%v", err)
		}
		return nil, exitError(exitRuntime, "%v", err)
	}
	if len(files) == 0 {
		return nil, exitError(exitFileNotFound, "no feature files under %s", strings.Join(cfg.paths, ", "))
	}

	var scenarios []core.Scenario
	for _, f := range files {
		scs, err := loader.LoadFeature(f)
		if err != nil {
			return nil, exitError(exitRuntime, "%v", err)
		}
		scenarios = append(scenarios, scs...)
	}

	if len(cfg.tags) == 0 {
		return scenarios, nil
	}
	var filtered []core.Scenario
	for _, sc := range scenarios {
		if matchTagFilter(sc, cfg.tags) {
			filtered = append(filtered, sc)
		}
	}
	return filtered, nil
}

// matchTagFilter applies the tag filter: entries prefixed with "~"
// exclude scenarios carrying that tag; remaining entries form an
// include set of which at least one must be present.
func matchTagFilter(sc core.Scenario, tags []string) bool {
	var includes []string
	for _, t := range tags {
		if name, ok := strings.CutPrefix(t, "~"); ok {
			if sc.HasTag(name) {
				return false
			}
			continue
		}
		includes = append(includes, t)
	}
	if len(includes) == 0 {
		return true
	}
	for _, t := range includes {
		if sc.HasTag(t) {
			return true
		}
	}
	return false
}

// newSuiteRunner builds the runner for one suite invocation: glue
// registry, formatter event handler, optional OpenTelemetry
// instrumentation, and optional SQLite persistence behind an event bus.
// The returned cleanup closes the bus and store.
func newSuiteRunner(cfg *suiteConfig, backends []backend.Backend, f formatter) (*runner.Runner, func(), error) {
	opts := runner.DefaultOptions()
	opts.DryRun = cfg.dryRun
	opts.Naming = cfg.naming
	if f != nil {
		opts.EventHandler = f.Handle
	}

	if cfg.otel {
		tracing := cukeotel.NewTracingHandler(otelapi.GetTracerProvider().Tracer("cuke/runner"))
		metrics, err := cukeotel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("cuke/runner"))
		if err != nil {
			return nil, nil, exitError(exitRuntime, "initializing run observability: %v", err)
		}
		opts.EventHandler = runner.MultiEventHandler(tracing.Handle, metrics.Handle, opts.EventHandler)
		opts.EventEmitterDecorator = func(emit runner.EventEmitter) runner.EventEmitter {
			return cukeotel.EnrichEmitter(emit, tracing)
		}
	}

	cleanup := func() {}
	if cfg.store != "" {
		store, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: cfg.store})
		if err != nil {
			return nil, nil, exitError(exitRuntime, "opening event store: %v", err)
		}
		sub := bus.NewStoreSubscriber(store, nil)
		eb := bus.NewMemBus(bus.MemBusConfig{})
		opts.EventBus = eb
		handler := opts.EventHandler
		opts.EventHandler = runner.MultiEventHandler(handler, sub.Handle)
		cleanup = func() {
			_ = eb.Close()
			_ = store.Close()
		}
	}

	r, err := runner.New(glue.NewMemGlue(), backends, opts)
	if err != nil {
		cleanup()
		return nil, nil, exitError(exitRuntime, "%v", err)
	}
	return r, cleanup, nil
}

// runSuite executes every scenario sequentially and returns pass/fail
// counts. The first error that is not a step failure aborts the suite.
func runSuite(ctx context.Context, r *runner.Runner, scenarios []core.Scenario, language string) (passed, failed int) {
	for _, sc := range scenarios {
		if err := r.Run(ctx, sc, language); err != nil {
			failed++
			continue
		}
		passed++
	}
	return passed, failed
}

// printSummary writes the suite totals.
func printSummary(cmd *cobra.Command, passed, failed int) {
	fmt.Fprintln(cmd.OutOrStdout(), summaryLine(passed, failed))
}
