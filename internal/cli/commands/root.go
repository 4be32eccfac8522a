package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diffkemp/diffpat/internal/logging"
	"github.com/diffkemp/diffpat/internal/pattern"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// DefaultConfigFile is read when --config is not given
const DefaultConfigFile = "diffpat.yaml"

// globalOptions holds the persistent flags shared by all subcommands
type globalOptions struct {
	configPath  string
	logLevel    string
	development bool
	noColor     bool
}

// logger builds the logger selected by the flags
func (o *globalOptions) logger() *zap.Logger {
	return logging.Must(o.logLevel, o.development)
}

// load builds a registry from the configured file
func (o *globalOptions) load(opts ...pattern.Option) (*pattern.Comparator, error) {
	opts = append([]pattern.Option{pattern.WithLogger(o.logger())}, opts...)
	return pattern.NewFromConfig(o.configPath, opts...)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "diffpat",
		Short: "Difference pattern loader and inspector",
		Long: color.CyanString(`diffpat - difference patterns for semantic function comparison

A difference pattern is a pair of functions, diffkemp.old.<name> and
diffkemp.new.<name>, describing a code change known to preserve semantics.
diffpat loads pattern files listed in a configuration file, validates them
and shows the metadata that guides the instruction-level comparator.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", DefaultConfigFile, "Pattern configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.development, "dev-log", true, "Human-readable log output")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newValidateCommand(opts))
	rootCmd.AddCommand(newListCommand(opts))
	rootCmd.AddCommand(newShowCommand(opts))
	rootCmd.AddCommand(newDecodeCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "diffpat version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
