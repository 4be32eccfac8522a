package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diffkemp/diffpat/internal/cli/ui"
)

// newValidateCommand creates the validate command
func newValidateCommand(opts *globalOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load every configured pattern file and report failures",
		Long: `Load every pattern file listed in the configuration and report each file
or pattern that could not be loaded, whatever the configured parse-failure
policy.

The command fails when no pattern could be loaded, or with --strict when
any failure was found.

Examples:
  diffpat validate -c patterns.yaml
  diffpat validate -c patterns.hcl --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			failures := c.LoadErrors()
			for _, e := range failures {
				ui.WriteLoadError(out, e, opts.noColor)
			}

			patterns := c.Patterns()
			if len(failures) == 0 {
				ui.WriteSuccess(out, fmt.Sprintf("%d patterns loaded from %d files", len(patterns), len(c.Files())), opts.noColor)
				return nil
			}

			fmt.Fprintf(out, "%d patterns loaded from %d files, %d failures\n", len(patterns), len(c.Files()), len(failures))
			if strict || len(patterns) == 0 {
				return fmt.Errorf("%d pattern load failures", len(failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on any load failure")

	return cmd
}
