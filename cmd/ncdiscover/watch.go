package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/batchatco/go-netcdf-discovery/catalog"
	"github.com/batchatco/go-netcdf-discovery/config"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"github.com/batchatco/go-netcdf-discovery/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Scan files as they appear in a directory",
	Long: `Watch DIR and scan every new or rewritten file whose name matches a
file type of the reader definition. Each file is scanned against the
catalog built so far; its summary is printed as soon as it is done.
On interrupt the merged catalog is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("format", "f", "yaml", "output format: yaml or json")
	watchCmd.Flags().Duration("settle", catalog.DefaultSettle, "quiet time before a changed file is scanned")
	watchCmd.Flags().String("metrics-textfile", "", "rewrite Prometheus metrics to this file after each scan")
}

func runWatch(cmd *cobra.Command, args []string) error {
	format := settings.GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown output format %q", format)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchDir(ctx, cmd.OutOrStdout(), cfg, args[0], format)
}

// watchDir prints one summary per scanned file until ctx is done, then the
// merged catalog.
func watchDir(ctx context.Context, out io.Writer, cfg *config.Config, dir, format string) error {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	textfile := settings.GetString("metrics-textfile")
	cat := catalog.New(cfg.KnownDatasets())

	var mu sync.Mutex
	w := catalog.NewWatcher(cfg, dir, cat, catalog.ScanOptions{
		Recorder: collector,
		OnFile: func(r catalog.FileReport) {
			collector.FileScanned(r.FileType, r.Err, r.Took)
			mu.Lock()
			defer mu.Unlock()
			if err := write(out, format, summarize(r)); err != nil {
				logger.Event(internal.LevelError).Err(err).Msg("write report")
			}
			if textfile != "" {
				if err := metrics.WriteTextfile(reg, textfile); err != nil {
					logger.Event(internal.LevelError).Err(err).Msg("write metrics")
				}
			}
		},
	})
	w.Settle = settings.GetDuration("settle")
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	return write(out, format, scanOutput{Reader: cfg.Reader.Name, Datasets: cat.Known()})
}
