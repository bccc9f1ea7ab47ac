package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/glue"
	"github.com/petal-labs/cuke/runner"
)

// newStepsCmd creates the "steps" subcommand: report every registered
// step definition with its source location.
func newStepsCmd(backends []backend.Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List registered step definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := runner.New(glue.NewMemGlue(), backends, runner.DefaultOptions())
			if err != nil {
				return exitError(exitRuntime, "%v", err)
			}
			rep := &printingReporter{cmd: cmd}
			r.ReportDefinitions(rep)
			if rep.count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), skipStyle.Render("no step definitions registered"))
			}
			return nil
		},
	}
}

// printingReporter writes one line per step definition.
type printingReporter struct {
	cmd   *cobra.Command
	count int
}

func (r *printingReporter) StepDefinition(h glue.StepHandler) {
	r.count++
	loc := h.Location()
	fmt.Fprintf(r.cmd.OutOrStdout(), "%s %s\n",
		h.Pattern(), locStyle.Render(fmt.Sprintf("%s:%d", loc.Path, loc.Line)))
}
