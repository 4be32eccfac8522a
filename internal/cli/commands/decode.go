package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diffkemp/diffpat/internal/cli/ui"
	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/ir/parser"
	"github.com/diffkemp/diffpat/internal/metadata"
)

// decodeTarget names the metadata the decode command reads its input into
const decodeTarget = "diffpat.decode"

// newDecodeCommand creates the decode command
func newDecodeCommand(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "decode [node]",
		Short: "Decode a pattern metadata node",
		Long: `Decode a pattern metadata node as the loader would and print the result.

The node is given inline or read from --file. Numbered nodes it references
may follow on later lines.

Examples:
  diffpat decode '!{!"basic-block-limit", i32 3}'
  diffpat decode --file node.ll`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				source = string(data)
			case len(args) == 1:
				source = args[0]
			default:
				return fmt.Errorf("a metadata node or --file is required")
			}

			md, err := decodeSource(source)
			if err != nil {
				return err
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), opts.noColor)
			kv.AddRow("Decoded", md.String())
			limit := "none"
			if md.HasBasicBlockLimit() {
				limit = fmt.Sprintf("%d", md.BasicBlockLimit)
			}
			kv.AddRow(metadata.TagBasicBlockLimit, limit)
			kv.AddRow(metadata.TagBasicBlockLimitEnd, fmt.Sprintf("%t", md.BasicBlockLimitEnd))
			kv.AddRow(metadata.TagFirstDifference, fmt.Sprintf("%t", md.FirstDifference))
			kv.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the node from a file")

	return cmd
}

// decodeSource parses source, whose first line is a metadata node, and
// decodes that node.
func decodeSource(source string) (metadata.PatternMetadata, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return metadata.PatternMetadata{}, fmt.Errorf("empty metadata node")
	}

	ctx := ir.NewContext()
	defer ctx.Dispose()

	module, err := parser.ParseString(ctx, "decode", "!"+decodeTarget+" = "+source+"\n")
	if err != nil {
		return metadata.PatternMetadata{}, err
	}
	node := module.NamedMetadata(decodeTarget)
	if node == nil {
		return metadata.PatternMetadata{}, fmt.Errorf("no metadata node found in input")
	}
	return metadata.DecodeNode(node)
}
