package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/batchatco/go-netcdf-discovery/catalog"
	"github.com/batchatco/go-netcdf-discovery/discovery"
	"github.com/batchatco/go-netcdf-discovery/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var scanCmd = &cobra.Command{
	Use:   "scan FILE...",
	Short: "Scan files and print the merged catalog",
	Long: `Scan each file against the reader definition and print the merged
catalog followed by a per-file summary.

Files are scanned in parallel; a file that cannot be opened or has no
latitude grid is reported and skipped. The exit status is non-zero
when any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Int("workers", catalog.DefaultWorkers, "files scanned in parallel")
	scanCmd.Flags().StringP("format", "f", "yaml", "output format: yaml or json")
	scanCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file")
}

// fileSummary is the printable part of a catalog.FileReport.
type fileSummary struct {
	Path     string   `yaml:"path" json:"path"`
	FileType string   `yaml:"file_type,omitempty" json:"file_type,omitempty"`
	Datasets int      `yaml:"datasets" json:"datasets"`
	Skipped  []string `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	Error    string   `yaml:"error,omitempty" json:"error,omitempty"`
}

type scanOutput struct {
	Reader   string             `yaml:"reader" json:"reader"`
	Datasets []discovery.Result `yaml:"datasets" json:"datasets"`
	Files    []fileSummary      `yaml:"files" json:"files"`
}

func summarize(r catalog.FileReport) fileSummary {
	s := fileSummary{Path: r.Path, FileType: r.FileType, Datasets: len(r.Results)}
	for _, err := range r.Skipped {
		s.Skipped = append(s.Skipped, err.Error())
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

func runScan(cmd *cobra.Command, args []string) error {
	format := settings.GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown output format %q", format)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	reports, err := catalog.ScanFiles(cmd.Context(), cfg, args, catalog.ScanOptions{
		Workers:  settings.GetInt("workers"),
		Recorder: collector,
		OnFile: func(r catalog.FileReport) {
			collector.FileScanned(r.FileType, r.Err, r.Took)
		},
	})
	if err != nil {
		return err
	}

	cat := catalog.New(cfg.KnownDatasets())
	cat.Apply(reports)
	out := scanOutput{Reader: cfg.Reader.Name, Datasets: cat.Known()}
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
		out.Files = append(out.Files, summarize(r))
	}
	if err := write(cmd.OutOrStdout(), format, out); err != nil {
		return err
	}

	if path := settings.GetString("metrics-textfile"); path != "" {
		if err := metrics.WriteTextfile(reg, path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(reports))
	}
	return nil
}

func write(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
