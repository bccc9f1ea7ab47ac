package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/petal-labs/cuke/backend"
)

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

func parseCronExpressionUTC(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// newWatchCmd creates the "watch" subcommand: run the suite on a
// cron schedule until the command context is cancelled.
func newWatchCmd(backends []backend.Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [features...]",
		Short: "Run the suite repeatedly on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, backends)
		},
	}

	cmd.Flags().String("cron", "*/5 * * * *", "UTC cron expression for scheduled runs")
	cmd.Flags().StringSlice("tags", nil, "Tag filter (e.g. @smoke, ~@wip)")
	cmd.Flags().String("format", "pretty", "Output format: pretty | json")
	cmd.Flags().String("naming", "snake_case", "Snippet naming convention: snake_case | camelCase")
	cmd.Flags().String("store", "", "SQLite DSN for persisting run events")
	cmd.Flags().Bool("otel", false, "Emit OpenTelemetry spans and metrics for runs")
	cmd.Flags().String("language", "en", "Scenario language tag")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, backends []backend.Backend) error {
	if err := setupCmdLogging(cmd); err != nil {
		return err
	}

	expr, _ := cmd.Flags().GetString("cron")
	schedule, err := parseCronExpressionUTC(expr)
	if err != nil {
		return exitError(exitUsage, "%v", err)
	}

	cfg, err := resolveSuiteConfig(cmd, args)
	if err != nil {
		return err
	}
	language, _ := cmd.Flags().GetString("language")

	ctx := cmd.Context()
	for {
		next := schedule.Next(time.Now().UTC())
		slog.Info("next scheduled run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(next)):
		}

		// Features are reloaded each cycle so edits to .feature
		// files are picked up without restarting the watcher.
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
		passed, failed := runSuite(ctx, r, scenarios, language)
		cleanup()
		printSummary(cmd, passed, failed)
	}
}
