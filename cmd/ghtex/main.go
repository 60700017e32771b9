// Command ghtex extracts and repacks DDS textures in Guitar Hero PC
// archive files (*.pak, *.pab, *.img.xen).
//
// Usage:
//
//	ghtex -mode extract [-out DIR] ARCHIVE
//	ghtex -mode repack [-assets DIR] [-o OUTPUT] ARCHIVE
//	ghtex -mode batch-extract [-out ROOT] ARCHIVE...
//	ghtex -mode batch-repack [-assets ROOT] ARCHIVE...
//
// Extraction writes dds_NNN.dds artifacts, PNG previews where the format
// allows, and a dds_index.txt manifest. Repacking reads that manifest,
// splices edited textures back into a copy of the archive, and records
// per-texture problems in dds_repair_log.txt.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	ghtex "github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities"
	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/texconv"
)

type config struct {
	mode        string
	out         string
	assets      string
	output      string
	manifest    string
	texconvPath string
	noTexconv   bool
	noPreviews  bool
	dropRaw     bool
	workers     int
	byteBudget  int64
	verbose     bool
}

func main() {
	cfg := parseFlags()
	logger := newLogger(cfg.verbose)
	ctx := context.Background()

	var err error
	switch cfg.mode {
	case "extract":
		err = runExtract(ctx, cfg, logger)
	case "repack":
		err = runRepack(ctx, cfg, logger)
	case "batch-extract":
		err = runBatchExtract(ctx, cfg, logger)
	case "batch-repack":
		err = runBatchRepack(ctx, cfg, logger)
	default:
		log.Fatalf("unknown mode %q", cfg.mode)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.mode, "mode", "extract", "mode: extract, repack, batch-extract, batch-repack")
	flag.StringVar(&cfg.out, "out", "", "output directory for extract (default extracted_dds), or root for batch-extract (default .)")
	flag.StringVar(&cfg.assets, "assets", "", "replacement directory for repack (default extracted_dds), or root for batch-repack (default .)")
	flag.StringVar(&cfg.output, "o", "", "repacked archive path (default ARCHIVE_repacked)")
	flag.StringVar(&cfg.manifest, "manifest", ghtex.ManifestName, "manifest file name")
	flag.StringVar(&cfg.texconvPath, "texconv", "", "path to texconv.exe (default texconv.exe, downloaded if missing)")
	flag.BoolVar(&cfg.noTexconv, "no-texconv", false, "disable PNG conversion and mip regeneration")
	flag.BoolVar(&cfg.noPreviews, "no-previews", false, "skip PNG previews during extraction")
	flag.BoolVar(&cfg.dropRaw, "drop-raw", false, "drop raw .dds artifacts that converted to PNG")
	flag.IntVar(&cfg.workers, "workers", 0, "batch workers: <0 serial, 0 auto, >0 fixed")
	flag.Int64Var(&cfg.byteBudget, "byte-budget", 0, "cap on batch archive bytes in memory (0 = unlimited)")
	flag.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	flag.Parse()
	return cfg
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newConverter(cfg config, logger *slog.Logger) ghtex.Converter {
	if cfg.noTexconv {
		return nil
	}
	opts := []texconv.Option{texconv.WithLogger(logger)}
	if cfg.texconvPath != "" {
		opts = append(opts, texconv.WithPath(cfg.texconvPath))
	}
	return texconv.New(opts...)
}

func extractOptions(cfg config) []ghtex.ExtractOption {
	var opts []ghtex.ExtractOption
	if cfg.noPreviews {
		opts = append(opts, ghtex.ExtractWithPreviews(false))
	}
	if cfg.dropRaw {
		opts = append(opts, ghtex.ExtractWithRawKept(false))
	}
	if cfg.manifest != ghtex.ManifestName {
		opts = append(opts, ghtex.ExtractWithManifestName(cfg.manifest))
	}
	return opts
}

func singleArchiveArg() (string, error) {
	args := flag.Args()
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one archive argument, got %d", len(args))
	}
	return args[0], nil
}

func runExtract(ctx context.Context, cfg config, logger *slog.Logger) error {
	archive, err := singleArchiveArg()
	if err != nil {
		return err
	}
	out := cfg.out
	if out == "" {
		out = "extracted_dds"
	}

	a, err := ghtex.Open(archive, ghtex.WithLogger(logger))
	if err != nil {
		return err
	}
	report, err := a.Extract(ctx, out, extractOptions(cfg)...)
	if err != nil {
		return err
	}

	for _, w := range report.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	fmt.Printf("extracted %d textures (%d previews) from %s to %s\n",
		len(report.Manifest.Entries), report.Previews, archive, out)
	return nil
}

func runRepack(ctx context.Context, cfg config, logger *slog.Logger) error {
	archive, err := singleArchiveArg()
	if err != nil {
		return err
	}
	assets := cfg.assets
	if assets == "" {
		assets = "extracted_dds"
	}

	a, err := ghtex.Open(archive, ghtex.WithLogger(logger))
	if err != nil {
		return err
	}
	m, err := ghtex.ReadManifest(filepath.Join(assets, cfg.manifest))
	if err != nil {
		return err
	}

	var opts []ghtex.RepackOption
	if conv := newConverter(cfg, logger); conv != nil {
		opts = append(opts, ghtex.RepackWithConverter(conv))
	}
	res, err := a.Repack(ctx, m, assets, opts...)
	if err != nil {
		return err
	}

	out := cfg.output
	if out == "" {
		out = archive + "_repacked"
	}
	if err := res.Save(out); err != nil {
		return err
	}
	logPath := filepath.Join(assets, ghtex.RepairLogName)
	if err := res.SaveDiagnostics(logPath); err != nil {
		return err
	}

	fmt.Printf("replaced %d of %d textures, wrote %s\n", res.Replaced(), len(res.Slots), out)
	if len(res.Diagnostics) > 0 {
		fmt.Printf("%d problems recorded in %s\n", len(res.Diagnostics), logPath)
	}
	return nil
}

func runBatchExtract(ctx context.Context, cfg config, logger *slog.Logger) error {
	archives := flag.Args()
	if len(archives) == 0 {
		return errors.New("no archives given")
	}
	root := cfg.out
	if root == "" {
		root = "."
	}

	opts := []ghtex.BatchOption{
		ghtex.BatchWithLogger(logger),
		ghtex.BatchWithWorkers(cfg.workers),
		ghtex.BatchWithExtractOptions(extractOptions(cfg)...),
	}
	if cfg.byteBudget > 0 {
		opts = append(opts, ghtex.BatchWithByteBudget(cfg.byteBudget))
	}
	results, err := ghtex.BatchExtract(ctx, archives, root, opts...)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Archive, res.Err)
			continue
		}
		fmt.Printf("%s: %d textures -> %s\n", res.Archive, len(res.Report.Manifest.Entries), res.Dir)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed", failed, len(results))
	}
	return nil
}

func runBatchRepack(ctx context.Context, cfg config, logger *slog.Logger) error {
	archives := flag.Args()
	if len(archives) == 0 {
		return errors.New("no archives given")
	}
	root := cfg.assets
	if root == "" {
		root = "."
	}

	opts := []ghtex.BatchOption{
		ghtex.BatchWithLogger(logger),
		ghtex.BatchWithWorkers(cfg.workers),
	}
	if cfg.manifest != ghtex.ManifestName {
		opts = append(opts, ghtex.BatchWithManifestName(cfg.manifest))
	}
	if conv := newConverter(cfg, logger); conv != nil {
		opts = append(opts, ghtex.BatchWithConverter(conv))
	}
	if cfg.byteBudget > 0 {
		opts = append(opts, ghtex.BatchWithByteBudget(cfg.byteBudget))
	}
	results, err := ghtex.BatchRepack(ctx, archives, root, opts...)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Archive, res.Err)
			continue
		}
		fmt.Printf("%s: replaced %d, skipped %d -> %s\n", res.Archive, res.Replaced, res.Skipped, res.Output)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed", failed, len(results))
	}
	return nil
}
