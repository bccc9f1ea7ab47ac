package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/cuke/backend"
	"github.com/petal-labs/cuke/glue"
)

// newValidateCmd creates the "validate" subcommand: dry-run compilation
// that reports every step without exactly one handler, with suggested
// snippets for undefined steps.
func newValidateCmd(backends []backend.Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [features...]",
		Short: "Check that every step resolves to exactly one step definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, backends)
		},
	}

	cmd.Flags().Bool("dry-run", true, "")
	_ = cmd.Flags().MarkHidden("dry-run")
	cmd.Flags().StringSlice("tags", nil, "Tag filter (e.g. @smoke, ~@wip)")
	cmd.Flags().String("naming", "snake_case", "Snippet naming convention: snake_case | camelCase")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, backends []backend.Backend) error {
	if err := setupCmdLogging(cmd); err != nil {
		return err
	}

	cfg, err := resolveSuiteConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.dryRun = true
	cfg.store = ""

	scenarios, err := loadScenarios(cfg)
	if err != nil {
		return err
	}

	r, cleanup, err := newSuiteRunner(cfg, backends, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	problems := 0
	var snippets []string

	for _, sc := range scenarios {
		tc := r.Compile(sc)
		for _, st := range tc.Steps() {
			switch m := st.Match.(type) {
			case *glue.Found:
				// resolved
			case *glue.Undefined:
				problems++
				fmt.Fprintf(out, "%s undefined: %q (%s:%d)\n",
					failStyle.Render("✗"), st.Step.Text, st.Step.Location.Path, st.Step.Location.Line)
				snippets = append(snippets, m.Snippets...)
			case *glue.Ambiguous:
				problems++
				fmt.Fprintf(out, "%s ambiguous: %q matches %d definitions (%s:%d)\n",
					failStyle.Render("✗"), st.Step.Text, len(m.Candidates), st.Step.Location.Path, st.Step.Location.Line)
			case *glue.FailedInstantiation:
				problems++
				fmt.Fprintf(out, "%s unbindable: %q: %v (%s:%d)\n",
					failStyle.Render("✗"), st.Step.Text, m.Cause, st.Step.Location.Path, st.Step.Location.Line)
			}
		}
	}

	if len(snippets) > 0 {
		fmt.Fprintln(out, "\nYou can implement the missing steps with:")
		for _, s := range snippets {
			fmt.Fprintf(out, "\n%s\n", s)
		}
	}

	if problems > 0 {
		return exitError(exitFailedSteps, "%d unresolved steps", problems)
	}
	fmt.Fprintln(out, passStyle.Render("all steps resolved"))
	return nil
}
