package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/batchatco/go-netcdf-discovery/config"
	"github.com/batchatco/go-netcdf-discovery/discovery"
	"github.com/batchatco/go-netcdf-discovery/internal"
	"github.com/batchatco/go-netcdf-discovery/reader"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is used when ScanOptions.Workers is not positive.
const DefaultWorkers = 4

// FileReport is the outcome of scanning one file.
type FileReport struct {
	Path     string
	FileType string
	Results  []discovery.Result
	// Skipped holds the arrays that looked like datasets but could not be
	// described.
	Skipped []error
	// Err is set when the file could not be matched, opened or scanned.
	Err  error
	Took time.Duration
}

// ScanOptions tune ScanFiles and Watcher.
type ScanOptions struct {
	Workers  int
	Recorder discovery.Recorder
	// OnFile, if set, is called once per finished file. Calls may come from
	// several goroutines at once.
	OnFile func(FileReport)
}

// ScanFile runs one discovery pass over path. known is handed to the pass
// unchanged.
func ScanFile(cfg *config.Config, path string, known []discovery.Result, rec discovery.Recorder) (report FileReport) {
	begin := time.Now()
	report.Path = path
	defer func() {
		report.Took = time.Since(begin)
	}()

	fileType, info, ok := cfg.MatchFileType(filepath.Base(path))
	if !ok {
		report.Err = fmt.Errorf("%w: %s", reader.ErrNoFileType, path)
		return report
	}
	report.FileType = fileType
	h, err := reader.Open(path, cfg, fileType, info, rec)
	if err != nil {
		report.Err = err
		return report
	}
	defer h.Close()
	report.Results, report.Skipped, report.Err = discovery.Collect(h.AvailableDatasets(known))
	return report
}

// ScanFiles scans paths in parallel. Every pass gets its own copy of the
// configured datasets. Reports come back in the order of paths; a failing
// file does not stop the others. The returned error is only set when ctx
// ends the scan early.
func ScanFiles(ctx context.Context, cfg *config.Config, paths []string, opts ScanOptions) ([]FileReport, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	reports := make([]FileReport, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := ScanFile(cfg, path, cfg.KnownDatasets(), opts.Recorder)
			logReport(r)
			reports[i] = r
			if opts.OnFile != nil {
				opts.OnFile(r)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// Apply merges the reports into c in order, skipping failed files.
func (c *Catalog) Apply(reports []FileReport) {
	for _, r := range reports {
		if r.Err == nil {
			c.Merge(r.Results)
		}
	}
}

func logReport(r FileReport) {
	if r.Err != nil {
		logger.Event(internal.LevelWarn).Str("path", r.Path).Str("file_type", r.FileType).
			Err(r.Err).Msg("scan failed")
		return
	}
	logger.Event(internal.LevelInfo).Str("path", r.Path).Str("file_type", r.FileType).
		Int("results", len(r.Results)).Int("skipped", len(r.Skipped)).
		Dur("took", r.Took).Msg("scanned")
}
