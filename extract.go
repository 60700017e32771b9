package ghtex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/dds"
	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/imaging"
)

// ExtractReport summarizes one extraction run.
type ExtractReport struct {
	// Manifest holds the entries written to the manifest file, in scan
	// order.
	Manifest *Manifest

	// ManifestPath is the manifest file location.
	ManifestPath string

	// Previews counts PNG previews written alongside the raw artifacts.
	Previews int

	// Warnings lists per-texture anomalies (sizing fallbacks, failed
	// previews). They never abort the run.
	Warnings []string
}

type extractConfig struct {
	previews     bool
	keepRaw      bool
	manifestName string
}

// ExtractOption configures an extraction run.
type ExtractOption func(*extractConfig)

// ExtractWithPreviews controls PNG preview generation. Previews are
// enabled by default; disabling them makes extraction byte-only.
func ExtractWithPreviews(enabled bool) ExtractOption {
	return func(c *extractConfig) {
		c.previews = enabled
	}
}

// ExtractWithRawKept controls whether raw .dds artifacts survive a
// successful preview conversion. They are kept by default; with keep set
// to false a converted texture leaves only its PNG behind.
func ExtractWithRawKept(keep bool) ExtractOption {
	return func(c *extractConfig) {
		c.keepRaw = keep
	}
}

// ExtractWithManifestName overrides the manifest file name inside the
// output directory.
func ExtractWithManifestName(name string) ExtractOption {
	return func(c *extractConfig) {
		if name != "" {
			c.manifestName = name
		}
	}
}

// Extract scans the archive for DDS signatures and writes every texture to
// destDir as dds_NNN.dds, numbered in scan order. Textures whose format
// can be decoded in process also get a PNG preview. The manifest binding
// names to offsets is written last.
//
// Returns ErrNoTextures, with nothing written, when the archive holds no
// signatures. Cancelling ctx stops the run between textures; artifacts
// already written remain, but no manifest is produced.
func (a *Archive) Extract(ctx context.Context, destDir string, opts ...ExtractOption) (*ExtractReport, error) {
	cfg := extractConfig{
		previews:     true,
		keepRaw:      true,
		manifestName: ManifestName,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	offsets := dds.Scan(a.data)
	if len(offsets) == 0 {
		return nil, ErrNoTextures
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("ghtex: create output directory: %w", err)
	}

	a.log().Info("extracting textures",
		"archive", a.name,
		"count", len(offsets),
		"dir", destDir)

	report := &ExtractReport{
		Manifest: &Manifest{Source: a.name},
	}
	for i, off := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ghtex: extract: %w", err)
		}
		if err := a.extractOne(i+1, off, destDir, cfg, report); err != nil {
			return nil, err
		}
	}

	report.ManifestPath = filepath.Join(destDir, cfg.manifestName)
	if err := report.Manifest.WriteFile(report.ManifestPath); err != nil {
		return nil, err
	}

	a.log().Info("extraction complete",
		"textures", len(report.Manifest.Entries),
		"previews", report.Previews,
		"warnings", len(report.Warnings))
	return report, nil
}

// extractOne writes the texture at off as entry number n and records it in
// the report. Only I/O failures are returned as errors; malformed headers
// degrade to a warning and a conservative byte span.
func (a *Archive) extractOne(n int, off int64, destDir string, cfg extractConfig, report *ExtractReport) error {
	name := entryName(n)

	hdr, herr := dds.Parse(a.data, off)

	var end int64
	slotLen, serr := dds.SlotLength(a.data, off)
	if serr == nil {
		end = off + slotLen
	} else {
		// Header arithmetic failed; fall back to everything up to the
		// next signature so the bytes are at least preserved.
		end = dds.NextSignature(a.data, off)
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%s at 0x%X: could not size texture (%v); extracted up to next signature", name, off, serr))
		a.log().Warn("texture sizing failed",
			"name", name,
			"offset", off,
			"error", serr)
	}

	raw := a.data[off:end]
	ddsPath := filepath.Join(destDir, name)
	if err := os.WriteFile(ddsPath, raw, 0o644); err != nil {
		return fmt.Errorf("ghtex: write texture %s: %w", name, err)
	}

	entry := ManifestEntry{
		Name:   name,
		Offset: off,
		Digest: digest.FromBytes(raw),
	}
	if herr == nil {
		entry.Format = hdr.FourCC
	}
	report.Manifest.Entries = append(report.Manifest.Entries, entry)

	if cfg.previews && herr == nil && serr == nil {
		if a.writePreview(hdr, off, end, ddsPath, name, report) && !cfg.keepRaw {
			if err := os.Remove(ddsPath); err != nil {
				return fmt.Errorf("ghtex: remove raw texture %s: %w", name, err)
			}
		}
	}
	return nil
}

// writePreview decodes the texture's top mip level and writes it next to
// the raw artifact as a PNG. Reports whether a preview was written.
func (a *Archive) writePreview(hdr *dds.Header, off, end int64, ddsPath, name string, report *ExtractReport) bool {
	payloadStart := off + hdr.HeaderLen()
	lvl0, err := hdr.LevelSize(0)
	if err != nil || payloadStart+lvl0 > end {
		return false
	}

	img, err := imaging.DecodeRGBA(a.data[payloadStart:payloadStart+lvl0], hdr.Width, hdr.Height, hdr.FourCC)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			a.log().Debug("no preview decoder for format",
				"name", name,
				"format", formatLabel(hdr.FourCC))
		} else {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: preview decode failed: %v", name, err))
		}
		return false
	}

	pngPath := strings.TrimSuffix(ddsPath, filepath.Ext(ddsPath)) + ".png"
	if err := imaging.WritePNG(img, pngPath); err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%s: preview write failed: %v", name, err))
		return false
	}
	report.Previews++
	return true
}
