// Package cli implements the cuke command line interface: running,
// validating, and inspecting Gherkin suites against registered backends.
//
// The bare cuke binary carries no step definitions; suites embed their
// own entrypoint and pass their backends to NewRootCmd. Without
// backends, run and validate still work as undefined-step detectors and
// snippet generators.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/cuke/backend"
)

// NewRootCmd builds the cuke root command wired to the given backends.
func NewRootCmd(version string, backends ...backend.Backend) *cobra.Command {
	root := &cobra.Command{
		Use:   "cuke",
		Short: "cuke Gherkin scenario runner CLI",
		Long:  "cuke — compile Gherkin scenarios against registered step definitions and run them.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")
	root.PersistentFlags().String("profile", "", "Run profile YAML (default: cuke.yaml when present)")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("cuke version %s\n", version))

	root.AddCommand(newRunCmd(backends))
	root.AddCommand(newValidateCmd(backends))
	root.AddCommand(newStepsCmd(backends))
	root.AddCommand(newWatchCmd(backends))

	return root
}
