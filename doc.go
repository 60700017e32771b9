// Package ghtex locates, extracts, and re-embeds the DDS textures packed
// inside Guitar Hero PC archive files (*.pak, *.pab, *.img.xen).
//
// The archives carry no table of contents. Textures are discovered by
// scanning for the "DDS " signature, and each texture's exact byte span is
// recovered by replaying the block-compressed mip-chain arithmetic implied
// by its header. Extraction writes one artifact per texture plus a text
// manifest binding artifact names to archive offsets; repacking splices
// validated replacements into a full copy of the archive without ever
// changing its length.
//
// # Quick Start
//
// Extract every texture from an archive:
//
//	a, err := ghtex.Open("global.pab.xen")
//	if err != nil {
//	    return err
//	}
//	report, err := a.Extract(ctx, "extracted_dds")
//
// Splice edited textures back over a copy of the archive:
//
//	m, err := ghtex.ReadManifest(filepath.Join("extracted_dds", ghtex.ManifestName))
//	if err != nil {
//	    return err
//	}
//	res, err := a.Repack(ctx, m, "extracted_dds",
//	    ghtex.RepackWithConverter(texconv.New()),
//	)
//	if err != nil {
//	    return err
//	}
//	err = res.Save("global.pab.xen_repacked")
//
// Replacements may be PNG images, converted through the external texconv
// tool (see the [texconv] subpackage), or ready-made DDS files used as-is.
// Per-slot problems are recorded in [RepackResult.Diagnostics] and never
// abort the run.
package ghtex
