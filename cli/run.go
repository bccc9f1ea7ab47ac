package cli

import (
	"github.com/spf13/cobra"

	"github.com/petal-labs/cuke/backend"
)

// newRunCmd creates the "run" subcommand.
func newRunCmd(backends []backend.Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [features...]",
		Short: "Run feature files against the registered step definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, backends)
		},
	}

	cmd.Flags().Bool("dry-run", false, "Compile without hooks and without executing handlers")
	cmd.Flags().StringSlice("tags", nil, "Tag filter (e.g. @smoke, ~@wip)")
	cmd.Flags().String("format", "pretty", "Output format: pretty | json")
	cmd.Flags().String("naming", "snake_case", "Snippet naming convention: snake_case | camelCase")
	cmd.Flags().String("store", "", "SQLite DSN for persisting run events")
	cmd.Flags().Bool("otel", false, "Emit OpenTelemetry spans and metrics for runs")
	cmd.Flags().String("language", "en", "Scenario language tag")

	return cmd
}

func runRun(cmd *cobra.Command, args []string, backends []backend.Backend) error {
	if err := setupCmdLogging(cmd); err != nil {
		return err
	}

	cfg, err := resolveSuiteConfig(cmd, args)
	if err != nil {
		return err
	}

	scenarios, err := loadScenarios(cfg)
	if err != nil {
		return err
	}

	f, err := newFormatter(cfg.format, cmd.OutOrStdout())
	if err != nil {
		return exitError(exitUsage, "%v", err)
	}

	r, cleanup, err := newSuiteRunner(cfg, backends, f)
	if err != nil {
		return err
	}
	defer cleanup()

	language, _ := cmd.Flags().GetString("language")
	passed, failed := runSuite(cmd.Context(), r, scenarios, language)
	printSummary(cmd, passed, failed)

	if failed > 0 {
		return exitError(exitFailedSteps, "%d scenarios failed", failed)
	}
	return nil
}

// setupCmdLogging applies the persistent logging flags.
func setupCmdLogging(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString("log-level")
	noColor, _ := cmd.Flags().GetBool("no-color")
	logFile, _ := cmd.Flags().GetString("log-file")
	if _, err := setupLogging(level, noColor, logFile); err != nil {
		return exitError(exitRuntime, "setting up logging: %v", err)
	}
	return nil
}
