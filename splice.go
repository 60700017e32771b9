package ghtex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/dds"
	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/imaging"
	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/texconv"
)

// RepairLogName is the conventional file name for repack diagnostics.
const RepairLogName = "dds_repair_log.txt"

// Outcome is the terminal state of one manifest entry in a repack run.
type Outcome uint8

const (
	// Replaced means the slot's bytes were overwritten with the validated
	// replacement.
	Replaced Outcome = iota

	// SkippedMissing means no replacement artifact existed, or no
	// conversion path produced usable bytes.
	SkippedMissing

	// SkippedSizeMismatch means the replacement was larger than the slot.
	SkippedSizeMismatch

	// SkippedFormatMismatch means the replacement's format tag did not
	// match the slot's, or a format tag could not be determined.
	SkippedFormatMismatch

	// SkippedUnparseable means the slot or the replacement lacked a valid
	// DDS header, or the slot could not be sized from live archive bytes.
	SkippedUnparseable
)

// String returns the outcome as a short diagnostic token.
func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case SkippedMissing:
		return "skipped-missing"
	case SkippedSizeMismatch:
		return "skipped-size-mismatch"
	case SkippedFormatMismatch:
		return "skipped-format-mismatch"
	case SkippedUnparseable:
		return "skipped-unparseable"
	}
	return "unknown"
}

// SlotResult records what happened to one manifest entry.
type SlotResult struct {
	Entry   ManifestEntry
	Outcome Outcome

	// Detail is the human-readable reason for non-Replaced outcomes.
	Detail string
}

// Converter turns replacement images into DDS data via an external
// compressor. *texconv.Tool satisfies it.
type Converter interface {
	// Convert compresses the image file at imagePath into DDS bytes in the
	// given texconv format name, with mipCount mip levels.
	Convert(ctx context.Context, imagePath, format string, mipCount int, srgb bool) ([]byte, error)

	// RegenerateMips rewrites the DDS file at ddsPath in place with a
	// regenerated mip chain of mipCount levels.
	RegenerateMips(ctx context.Context, ddsPath string, mipCount int) error
}

var _ Converter = (*texconv.Tool)(nil)

type repackConfig struct {
	converter Converter
}

// RepackOption configures a repack run.
type RepackOption func(*repackConfig)

// RepackWithConverter supplies the external compressor used to turn PNG
// replacements into DDS data and to regenerate mip chains. Without one,
// only ready-made .dds replacements are spliced.
func RepackWithConverter(c Converter) RepackOption {
	return func(cfg *repackConfig) {
		cfg.converter = c
	}
}

// RepackResult holds the rewritten archive copy and the run's outcomes.
// Nothing touches disk until Save or SaveDiagnostics is called.
type RepackResult struct {
	data []byte

	// Slots records one outcome per manifest entry, in manifest order.
	Slots []SlotResult

	// Diagnostics lists every anomaly hit during the run, in the order
	// encountered. An empty list is a clean run.
	Diagnostics []string
}

// Bytes returns the rewritten archive. Its length always equals the
// original archive's.
func (r *RepackResult) Bytes() []byte { return r.data }

// Replaced returns how many slots were replaced.
func (r *RepackResult) Replaced() int {
	n := 0
	for _, s := range r.Slots {
		if s.Outcome == Replaced {
			n++
		}
	}
	return n
}

// Save writes the rewritten archive to path, atomically.
func (r *RepackResult) Save(path string) error {
	if err := writeFileAtomic(path, r.data); err != nil {
		return fmt.Errorf("ghtex: write repacked archive: %w", err)
	}
	return nil
}

// SaveDiagnostics writes the diagnostic record to path, one line per
// anomaly. An empty file is the expected result of a clean run.
func (r *RepackResult) SaveDiagnostics(path string) error {
	text := strings.Join(r.Diagnostics, "\n")
	if text != "" {
		text += "\n"
	}
	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return fmt.Errorf("ghtex: write repair log: %w", err)
	}
	return nil
}

// Repack splices replacement textures from assetDir into a copy of the
// archive, one manifest entry at a time. For each entry it prefers a
// same-named .png converted through the configured Converter, falling back
// to the raw .dds artifact. Replacements shorter than their slot are
// padded with zero bytes; larger ones are rejected.
//
// Per-slot failures are recorded as skips and never abort the run, so the
// returned result always carries one SlotResult per manifest entry. The
// copy's length never changes and the original archive bytes are left
// untouched. Cancelling ctx aborts between slots with an error.
func (a *Archive) Repack(ctx context.Context, m *Manifest, assetDir string, opts ...RepackOption) (*RepackResult, error) {
	if m == nil || len(m.Entries) == 0 {
		return nil, ErrNoEntries
	}
	var cfg repackConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	res := &RepackResult{data: append([]byte(nil), a.data...)}
	a.log().Info("repacking textures",
		"archive", a.name,
		"entries", len(m.Entries),
		"assets", assetDir)

	for _, entry := range m.Entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ghtex: repack: %w", err)
		}
		sr := a.spliceOne(ctx, res, &cfg, assetDir, entry)
		res.Slots = append(res.Slots, sr)
		if sr.Outcome == Replaced {
			a.log().Debug("texture replaced", "name", entry.Name, "offset", entry.Offset)
			continue
		}
		res.Diagnostics = append(res.Diagnostics, sr.Detail)
		a.log().Warn("texture skipped",
			"name", entry.Name,
			"outcome", sr.Outcome.String(),
			"detail", sr.Detail)
	}

	a.log().Info("repack complete",
		"replaced", res.Replaced(),
		"skipped", len(res.Slots)-res.Replaced())
	return res, nil
}

// spliceOne runs one manifest entry through the replacement pipeline and
// returns its outcome. Advisory diagnostics (digest drift, conversion
// fallbacks) are appended to res directly; the terminal skip reason is
// returned in the SlotResult and appended by the caller.
func (a *Archive) spliceOne(ctx context.Context, res *RepackResult, cfg *repackConfig, assetDir string, entry ManifestEntry) SlotResult {
	ddsPath := filepath.Join(assetDir, entry.Name)
	pngPath := strings.TrimSuffix(ddsPath, filepath.Ext(ddsPath)) + ".png"
	haveDDS := fileExists(ddsPath)
	havePNG := fileExists(pngPath)
	if !haveDDS && !havePNG {
		return skipSlot(entry, SkippedMissing,
			fmt.Sprintf("%s: no replacement artifact (.png or .dds) found - skipping", entry.Name))
	}

	slot, err := dds.Parse(a.data, entry.Offset)
	if err != nil {
		return skipSlot(entry, SkippedUnparseable,
			fmt.Sprintf("%s at 0x%X: no valid DDS header in archive - skipping", entry.Name, entry.Offset))
	}
	slotLen, err := dds.SlotLength(a.data, entry.Offset)
	if err != nil {
		return skipSlot(entry, SkippedUnparseable,
			fmt.Sprintf("%s at 0x%X: could not size slot (%v) - skipping", entry.Name, entry.Offset, err))
	}

	// Drift advisories: the entry may come from an older extraction of a
	// different archive build. These never change the outcome.
	if entry.Digest != "" {
		live := digest.FromBytes(a.data[entry.Offset : entry.Offset+slotLen])
		if live != entry.Digest {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s at 0x%X: archive bytes no longer match extraction digest", entry.Name, entry.Offset))
		}
	}
	if entry.Format != "" && entry.Format != formatLabel(slot.FourCC) {
		res.Diagnostics = append(res.Diagnostics,
			fmt.Sprintf("%s at 0x%X: manifest format %s does not match archive format %s",
				entry.Name, entry.Offset, entry.Format, formatLabel(slot.FourCC)))
	}

	var replacement []byte
	if havePNG {
		if cfg.converter == nil {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("%s: PNG replacement present but no converter available - trying raw DDS", entry.Name))
		} else {
			data, diag := a.convertPNG(ctx, cfg.converter, pngPath, slot, slotLen, entry)
			if diag != "" {
				res.Diagnostics = append(res.Diagnostics, diag)
			}
			replacement = data
		}
	}
	if replacement == nil && haveDDS {
		data, diag := a.loadRawDDS(ctx, cfg.converter, ddsPath, entry)
		if diag != "" {
			res.Diagnostics = append(res.Diagnostics, diag)
		}
		replacement = data
	}
	if replacement == nil {
		return skipSlot(entry, SkippedMissing,
			fmt.Sprintf("%s at 0x%X: no usable replacement produced - skipping", entry.Name, entry.Offset))
	}

	rh, err := dds.Parse(replacement, 0)
	if err != nil {
		return skipSlot(entry, SkippedUnparseable,
			fmt.Sprintf("%s: replacement has no valid DDS header - skipping", entry.Name))
	}
	if slot.FourCC == "" || rh.FourCC == "" {
		return skipSlot(entry, SkippedFormatMismatch,
			fmt.Sprintf("%s at 0x%X: could not determine DDS format - skipping", entry.Name, entry.Offset))
	}
	if rh.FourCC != slot.FourCC {
		return skipSlot(entry, SkippedFormatMismatch,
			fmt.Sprintf("%s at 0x%X: format mismatch (archive %s, replacement %s) - skipping",
				entry.Name, entry.Offset, slot.FourCC, rh.FourCC))
	}
	if int64(len(replacement)) > slotLen {
		return skipSlot(entry, SkippedSizeMismatch,
			fmt.Sprintf("%s at 0x%X: replacement is %d bytes, slot is %d - skipping",
				entry.Name, entry.Offset, len(replacement), slotLen))
	}
	if int64(len(replacement)) < slotLen {
		a.log().Debug("padding replacement",
			"name", entry.Name,
			"from", len(replacement),
			"to", slotLen)
		// make zero-fills, so the slot tail pads with 0x00.
		padded := make([]byte, slotLen)
		copy(padded, replacement)
		replacement = padded
	}

	copy(res.data[entry.Offset:entry.Offset+slotLen], replacement)
	return SlotResult{Entry: entry, Outcome: Replaced}
}

// convertPNG compresses the PNG at pngPath into DDS bytes matching the
// slot's format and geometry. Returns nil bytes and a diagnostic line when
// no usable DDS could be produced; the caller then falls back to a raw
// .dds artifact if one exists.
func (a *Archive) convertPNG(ctx context.Context, conv Converter, pngPath string, slot *dds.Header, slotLen int64, entry ManifestEntry) ([]byte, string) {
	format, ok := dds.TexconvFormat(slot)
	if !ok {
		if slot.IsDX10() {
			return nil, fmt.Sprintf("%s: DX10 texture with unmapped DXGI format %d - cannot convert PNG", entry.Name, slot.DXGI)
		}
		return nil, fmt.Sprintf("%s: no conversion mapping for format %s - cannot convert PNG", entry.Name, formatLabel(slot.FourCC))
	}

	// The compressor reproduces the slot's geometry only if the input
	// image has it, so resize first when the dimensions drifted.
	src := pngPath
	if slot.Width > 0 && slot.Height > 0 {
		tmpDir, err := os.MkdirTemp("", "ghtex-fit-")
		if err == nil {
			defer os.RemoveAll(tmpDir)
			fitted := filepath.Join(tmpDir, filepath.Base(pngPath))
			resized, ferr := imaging.Fit(pngPath, fitted, int(slot.Width), int(slot.Height))
			switch {
			case ferr != nil:
				a.log().Warn("could not fit replacement image",
					"png", pngPath,
					"error", ferr)
			case resized:
				a.log().Debug("resized replacement image",
					"png", pngPath,
					"width", slot.Width,
					"height", slot.Height)
				src = fitted
			}
		}
	}

	srgb := !slot.IsDX10()
	mips := int(slot.MipCount)
	data, err := conv.Convert(ctx, src, format, mips, srgb)
	if err != nil {
		return nil, fmt.Sprintf("%s: PNG conversion failed (%v) - trying raw DDS", entry.Name, err)
	}
	if int64(len(data)) > slotLen && mips > 1 {
		a.log().Info("converted DDS too large, retrying with a single mip level",
			"name", entry.Name,
			"size", len(data),
			"slot", slotLen)
		data, err = conv.Convert(ctx, src, format, 1, false)
		if err != nil {
			return nil, fmt.Sprintf("%s: PNG conversion retry failed (%v) - trying raw DDS", entry.Name, err)
		}
	}
	if int64(len(data)) > slotLen {
		return nil, fmt.Sprintf("%s: converted DDS is %d bytes, slot is %d - trying raw DDS", entry.Name, len(data), slotLen)
	}
	return data, ""
}

// loadRawDDS reads a ready-made .dds replacement. When the artifact
// declares more than one mip level and a converter is available, its mip
// chain is regenerated in place first so hand-edited top levels propagate
// down the chain.
func (a *Archive) loadRawDDS(ctx context.Context, conv Converter, ddsPath string, entry ManifestEntry) ([]byte, string) {
	data, err := os.ReadFile(ddsPath)
	if err != nil {
		return nil, fmt.Sprintf("%s: could not read replacement DDS (%v)", entry.Name, err)
	}

	rh, err := dds.Parse(data, 0)
	if err != nil || rh.MipCount <= 1 || conv == nil {
		return data, ""
	}
	if err := conv.RegenerateMips(ctx, ddsPath, int(rh.MipCount)); err != nil {
		a.log().Warn("mip regeneration failed, using DDS as-is",
			"name", entry.Name,
			"error", err)
		return data, ""
	}
	fresh, err := os.ReadFile(ddsPath)
	if err != nil {
		return data, ""
	}
	return fresh, ""
}

func skipSlot(entry ManifestEntry, o Outcome, detail string) SlotResult {
	return SlotResult{Entry: entry, Outcome: o, Detail: detail}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
