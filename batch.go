package ghtex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type batchConfig struct {
	workers      int
	byteBudget   int64
	logger       *slog.Logger
	converter    Converter
	manifestName string
	extract      []ExtractOption
}

// BatchOption configures a batch run.
type BatchOption func(*batchConfig)

// BatchWithWorkers sets the number of archives processed in parallel.
// Values < 0 force serial processing. Zero uses one worker per CPU.
func BatchWithWorkers(n int) BatchOption {
	return func(c *batchConfig) {
		c.workers = n
	}
}

// BatchWithByteBudget caps the total size of archives resident in memory
// at once, by archive file size. A value of 0 disables the budget.
// Archives larger than the budget are admitted alone.
func BatchWithByteBudget(limit int64) BatchOption {
	return func(c *batchConfig) {
		if limit < 0 {
			limit = 0
		}
		c.byteBudget = limit
	}
}

// BatchWithLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func BatchWithLogger(logger *slog.Logger) BatchOption {
	return func(c *batchConfig) {
		c.logger = logger
	}
}

// BatchWithConverter supplies the Converter handed to every repack in the
// batch.
func BatchWithConverter(conv Converter) BatchOption {
	return func(c *batchConfig) {
		c.converter = conv
	}
}

// BatchWithManifestName overrides the manifest file name read from each
// extraction directory during a batch repack. Extractions that renamed
// their manifest via ExtractWithManifestName need the same name here.
func BatchWithManifestName(name string) BatchOption {
	return func(c *batchConfig) {
		if name != "" {
			c.manifestName = name
		}
	}
}

// BatchWithExtractOptions forwards extraction options to every archive in
// the batch.
func BatchWithExtractOptions(opts ...ExtractOption) BatchOption {
	return func(c *batchConfig) {
		c.extract = append(c.extract, opts...)
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *batchConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// resolveWorkers picks the worker count for n archives.
func (c *batchConfig) resolveWorkers(n int) int {
	w := c.workers
	if w < 0 {
		return 1
	}
	if w == 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// BatchExtractResult is one archive's outcome in a batch extraction.
type BatchExtractResult struct {
	// Archive is the source archive path.
	Archive string

	// Dir is the extraction directory, <archive base>_dds under the
	// destination root.
	Dir string

	// Report is the extraction report. Nil when Err is set.
	Report *ExtractReport

	Err error
}

// BatchRepackResult is one archive's outcome in a batch repack.
type BatchRepackResult struct {
	// Archive is the source archive path.
	Archive string

	// Output is the repacked archive path, <archive>_repacked.
	Output string

	// Replaced and Skipped count the archive's slot outcomes.
	Replaced int
	Skipped  int

	// Diagnostics are the archive's repair log lines.
	Diagnostics []string

	Err error
}

// BatchExtract extracts every archive in archives into its own directory
// under destRoot. Archives are processed concurrently; per-archive
// failures land in the results rather than aborting the batch. The
// returned slice is indexed like archives.
func BatchExtract(ctx context.Context, archives []string, destRoot string, opts ...BatchOption) ([]BatchExtractResult, error) {
	var cfg batchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]BatchExtractResult, len(archives))
	err := runBatch(ctx, &cfg, archives, func(ctx context.Context, i int) {
		path := archives[i]
		dir := filepath.Join(destRoot, filepath.Base(path)+"_dds")
		results[i] = BatchExtractResult{Archive: path, Dir: dir}

		a, err := Open(path, WithLogger(cfg.logger))
		if err != nil {
			results[i].Err = err
			return
		}
		report, err := a.Extract(ctx, dir, cfg.extract...)
		if err != nil {
			results[i].Err = err
			return
		}
		results[i].Report = report
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// BatchRepack repacks every archive in archives from its extraction
// directory under assetRoot, writing each rewritten archive next to its
// source as <archive>_repacked and the repair log into the extraction
// directory. The returned slice is indexed like archives.
func BatchRepack(ctx context.Context, archives []string, assetRoot string, opts ...BatchOption) ([]BatchRepackResult, error) {
	var cfg batchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	manifest := cfg.manifestName
	if manifest == "" {
		manifest = ManifestName
	}

	results := make([]BatchRepackResult, len(archives))
	err := runBatch(ctx, &cfg, archives, func(ctx context.Context, i int) {
		path := archives[i]
		dir := filepath.Join(assetRoot, filepath.Base(path)+"_dds")
		out := path + "_repacked"
		results[i] = BatchRepackResult{Archive: path, Output: out}

		m, err := ReadManifest(filepath.Join(dir, manifest))
		if err != nil {
			results[i].Err = err
			return
		}
		a, err := Open(path, WithLogger(cfg.logger))
		if err != nil {
			results[i].Err = err
			return
		}
		res, err := a.Repack(ctx, m, dir, RepackWithConverter(cfg.converter))
		if err != nil {
			results[i].Err = err
			return
		}
		if err := res.Save(out); err != nil {
			results[i].Err = err
			return
		}
		if err := res.SaveDiagnostics(filepath.Join(dir, RepairLogName)); err != nil {
			results[i].Err = err
			return
		}
		results[i].Replaced = res.Replaced()
		results[i].Skipped = len(res.Slots) - res.Replaced()
		results[i].Diagnostics = res.Diagnostics
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// runBatch fans the archive indices out to a bounded worker pool. Each
// index is handled by exactly one worker, so fn may write to per-index
// slots without locking. When a byte budget is set, workers hold a
// weighted semaphore lease sized by archive file size while processing.
func runBatch(ctx context.Context, cfg *batchConfig, archives []string, fn func(ctx context.Context, i int)) error {
	if len(archives) == 0 {
		return nil
	}
	workers := cfg.resolveWorkers(len(archives))

	var budget *semaphore.Weighted
	if cfg.byteBudget > 0 {
		budget = semaphore.NewWeighted(cfg.byteBudget)
	}
	cfg.log().Info("batch starting",
		"archives", len(archives),
		"workers", workers)

	eg, ctx := errgroup.WithContext(ctx)
	idx := make(chan int)

	eg.Go(func() error {
		defer close(idx)
		for i := range archives {
			select {
			case idx <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for range workers {
		eg.Go(func() error {
			for i := range idx {
				if err := ctx.Err(); err != nil {
					return err
				}
				release, err := acquireBudget(ctx, budget, cfg.byteBudget, archives[i])
				if err != nil {
					return err
				}
				fn(ctx, i)
				release()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("ghtex: batch: %w", err)
	}
	return nil
}

// acquireBudget takes a semaphore lease weighted by the file's size,
// clamped to the budget so oversized archives still run, just alone.
func acquireBudget(ctx context.Context, budget *semaphore.Weighted, limit int64, path string) (func(), error) {
	if budget == nil {
		return func() {}, nil
	}
	weight := int64(1)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		weight = info.Size()
	}
	if weight > limit {
		weight = limit
	}
	if err := budget.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	return func() { budget.Release(weight) }, nil
}
