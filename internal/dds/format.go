package dds

// blockBytes returns the bytes per 4x4 block for a recognized compressed
// FourCC. Formats outside the table are treated as uncompressed.
func blockBytes(fourCC string) (int64, bool) {
	switch fourCC {
	case "DXT1", "ATI1", "BC4U":
		return 8, true
	case "DXT2", "DXT3", "DXT4", "DXT5", "ATI2", "BC5U":
		return 16, true
	}
	return 0, false
}

// dxgiBlockBytes returns the bytes per 4x4 block for a recognized DXGI
// format id, covering the BC families in their typeless, UNORM, and sRGB
// variants.
func dxgiBlockBytes(id uint32) (int64, bool) {
	switch {
	case id >= 70 && id <= 72: // BC1
		return 8, true
	case id >= 73 && id <= 78: // BC2, BC3
		return 16, true
	case id >= 79 && id <= 81: // BC4
		return 8, true
	case id >= 82 && id <= 84: // BC5
		return 16, true
	case id >= 94 && id <= 99: // BC6H, BC7
		return 16, true
	}
	return 0, false
}

// fourCCTexconv maps a slot FourCC to the format name texconv expects.
var fourCCTexconv = map[string]string{
	"DXT1": "BC1_UNORM",
	"DXT3": "BC2_UNORM",
	"DXT5": "BC3_UNORM",
	"ATI2": "BC5_UNORM",
}

// dxgiTexconv maps a DXT10-extension format id to the texconv format name.
var dxgiTexconv = map[uint32]string{
	71: "BC1_UNORM",
	74: "BC2_UNORM",
	77: "BC3_UNORM",
	83: "BC5_UNORM",
}

// TexconvFormat returns the texconv format name to request when
// regenerating this header's texture from a source image. The second
// result is false when no conversion mapping exists for the format.
func TexconvFormat(h *Header) (string, bool) {
	if h.IsDX10() {
		if !h.HasDXGI {
			return "", false
		}
		name, ok := dxgiTexconv[h.DXGI]
		return name, ok
	}
	name, ok := fourCCTexconv[h.FourCC]
	return name, ok
}
