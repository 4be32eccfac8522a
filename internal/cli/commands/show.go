package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diffkemp/diffpat/internal/cli/ui"
	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/pattern"
)

// newShowCommand creates the show command
func newShowCommand(opts *globalOptions) *cobra.Command {
	var diff bool

	cmd := &cobra.Command{
		Use:   "show <pattern>",
		Short: "Show a pattern's halves, settings and annotations",
		Long: `Show a pattern's halves, settings and annotations.

With --diff the halves are walked in lockstep from their start positions, the
way the comparator advances a pattern cursor, and every position where the
instructions differ is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			p := c.Pattern(args[0])
			if p == nil {
				var names []string
				for _, known := range c.Patterns() {
					names = append(names, known.Name())
				}
				fmt.Fprint(cmd.ErrOrStderr(), ui.PatternNotFound(args[0], names, opts.noColor))
				return fmt.Errorf("pattern %q not found", args[0])
			}

			renderPattern(out, p, opts.noColor)
			if diff {
				fmt.Fprintln(out)
				renderDiff(out, c, p, opts.noColor)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&diff, "diff", false, "Compare the halves instruction by instruction")

	return cmd
}

// renderDiff walks both halves of p with a session cursor
func renderDiff(out io.Writer, c *pattern.Comparator, p *pattern.Pattern, noColor bool) {
	session := c.NewSession(p.NewPattern(), p.OldPattern())
	cursor := session.Cursor(p)

	var oldLines, newLines []string
	for !cursor.Done() {
		oldLines = append(oldLines, instructionText(cursor.OldPosition))
		newLines = append(newLines, instructionText(cursor.NewPosition))
		cursor.Advance()
	}

	d := ui.Diff(trimEmpty(oldLines), trimEmpty(newLines), noColor)
	ui.Header(out, "Differences from start positions", noColor)
	fmt.Fprint(out, d.String())
	if d.Changed {
		fmt.Fprintln(out, d.Stats())
	} else {
		fmt.Fprintln(out)
	}
}

// instructionText renders inst without its metadata attachments
func instructionText(inst *ir.Instruction) string {
	if inst == nil {
		return ""
	}
	text := inst.Opcode
	if inst.Args != "" {
		text += " " + inst.Args
	}
	if inst.Result != "" {
		text = "%" + inst.Result + " = " + text
	}
	return text
}

// trimEmpty drops the trailing positions past the end of a half
func trimEmpty(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func renderPattern(out io.Writer, p *pattern.Pattern, noColor bool) {
	ui.Header(out, "Pattern "+p.Name(), noColor)

	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("File", p.Path())
	kv.AddRow("Old half", "@"+p.OldPattern().Name+" "+p.OldPattern().Signature())
	kv.AddRow("New half", "@"+p.NewPattern().Name+" "+p.NewPattern().Signature())
	kv.AddRow("Old start", describePosition(p.OldStartPosition()))
	kv.AddRow("New start", describePosition(p.NewStartPosition()))
	kv.AddRow("Settings", formatSettings(p))
	kv.Render()
	fmt.Fprintln(out)

	if p.NumAnnotated() == 0 {
		fmt.Fprintln(out, "No annotated instructions.")
		return
	}

	table := ui.NewTable(out, []string{"HALF", "LINE", "INSTRUCTION", "METADATA"}, &ui.TableOptions{NoColor: noColor})
	for _, half := range []struct {
		label string
		fn    *ir.Function
	}{{"old", p.OldPattern()}, {"new", p.NewPattern()}} {
		for _, inst := range p.Annotated(half.fn) {
			md, _ := p.Metadata(inst)
			table.AddRow(half.label, strconv.Itoa(inst.Line), inst.String(), md.String())
		}
	}
	table.Render()
}

func formatSettings(p *pattern.Pattern) string {
	s := p.Settings()
	if s.Len() == 0 {
		return "-"
	}
	pairs := make([]string, 0, s.Len())
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ", ")
}
