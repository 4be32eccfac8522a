package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/diffkemp/diffpat/internal/cli/ui"
	"github.com/diffkemp/diffpat/internal/ir"
)

// newListCommand creates the list command
func newListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if !c.HasPatterns() {
				fmt.Fprintln(out, "No patterns loaded.")
				return nil
			}

			baseDir := filepath.Dir(opts.configPath)
			table := ui.NewTable(out, []string{"PATTERN", "FILE", "ANNOTATIONS", "NEW START", "OLD START"},
				&ui.TableOptions{NoColor: opts.noColor})
			for _, p := range c.Patterns() {
				table.AddRow(
					p.Name(),
					relativePath(baseDir, p.Path()),
					strconv.Itoa(p.NumAnnotated()),
					describePosition(p.NewStartPosition()),
					describePosition(p.OldStartPosition()),
				)
			}
			table.Render()
			return nil
		},
	}
}

// relativePath shortens path relative to base when possible
func relativePath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

// describePosition names an instruction by opcode and source line
func describePosition(inst *ir.Instruction) string {
	if inst == nil {
		return "-"
	}
	if inst.Line == 0 {
		return inst.Opcode
	}
	return fmt.Sprintf("%s (line %d)", inst.Opcode, inst.Line)
}
