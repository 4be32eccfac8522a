package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diffkemp/diffpat/internal/cli/ui"
	"github.com/diffkemp/diffpat/internal/pattern"
	"github.com/diffkemp/diffpat/internal/watch"
)

// newWatchCommand creates the watch command
func newWatchCommand(opts *globalOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload patterns whenever the configuration or a pattern file changes",
		Long: `Load the configured patterns and reload them whenever the configuration
file or one of the listed pattern files changes. Load failures are reported
after every reload.

Examples:
  diffpat watch -c patterns.yaml
  diffpat watch -c patterns.yaml --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			defer logger.Sync() //nolint:errcheck

			registry := prometheus.NewRegistry()
			metrics := pattern.NewMetrics(registry)

			reloader, err := watch.NewReloader(opts.configPath, logger, pattern.WithMetrics(metrics))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report := func(c *pattern.Comparator) {
				for _, e := range c.LoadErrors() {
					ui.WriteLoadError(out, e, opts.noColor)
				}
				ui.WriteSuccess(out, fmt.Sprintf("%d patterns loaded from %d files", len(c.Patterns()), len(c.Files())), opts.noColor)
			}
			reloader.OnReload(report)
			report(reloader.Current())

			if err := reloader.Start(); err != nil {
				_ = reloader.Stop()
				return err
			}

			var server *http.Server
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				server = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server failed", zap.Error(err))
					}
				}()
			}

			color.New(color.FgYellow).Fprintln(out, "Watching for changes. Press Ctrl+C to stop.")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}
			return reloader.Stop()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}
