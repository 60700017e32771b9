// Package testutil builds synthetic DDS textures for tests.
//
// Sizes are computed locally from the block-compression rules so tests hold
// independently derived expected values.
package testutil

import "encoding/binary"

// DDS header layout constants.
const (
	headerSize     = 128
	dx10HeaderSize = 20

	ddsHeaderSize      = 124
	ddsPixelFormatSize = 32

	flagCaps        = 0x1
	flagHeight      = 0x2
	flagWidth       = 0x4
	flagPixelFormat = 0x1000
	flagMipMapCount = 0x20000
	flagLinearSize  = 0x80000

	pfFourCC = 0x4
)

// DDSHeader returns a 128-byte DDS header with the given dimensions, mip
// count, and FourCC tag. PitchOrLinearSize is set to the computed base
// level size. Fields the tools never read are left realistic but minimal.
func DDSHeader(width, height, mipCount uint32, fourCC string) []byte {
	h := make([]byte, headerSize)
	copy(h[0:4], "DDS ")
	binary.LittleEndian.PutUint32(h[4:], ddsHeaderSize)

	flags := uint32(flagCaps | flagHeight | flagWidth | flagPixelFormat | flagLinearSize)
	if mipCount > 1 {
		flags |= flagMipMapCount
	}
	binary.LittleEndian.PutUint32(h[8:], flags)
	binary.LittleEndian.PutUint32(h[12:], height)
	binary.LittleEndian.PutUint32(h[16:], width)
	binary.LittleEndian.PutUint32(h[20:], LevelSize(width, height, 0, fourCC))
	binary.LittleEndian.PutUint32(h[28:], mipCount)

	binary.LittleEndian.PutUint32(h[76:], ddsPixelFormatSize)
	if fourCC != "" {
		binary.LittleEndian.PutUint32(h[80:], pfFourCC)
		copy(h[84:88], fourCC)
	}
	return h
}

// DDSTexture returns a complete synthetic texture: header plus a payload of
// fill bytes covering every mip level.
func DDSTexture(width, height, mipCount uint32, fourCC string, fill byte) []byte {
	data := DDSHeader(width, height, mipCount, fourCC)
	payload := make([]byte, PayloadSize(width, height, mipCount, fourCC))
	for i := range payload {
		payload[i] = fill
	}
	return append(data, payload...)
}

// DX10Texture returns a complete synthetic DX10 texture: base header with
// the DX10 sentinel, a 20-byte extension carrying dxgiFormat, and a payload
// of fill bytes covering every mip level.
func DX10Texture(width, height, mipCount, dxgiFormat uint32, fill byte) []byte {
	data := DDSHeader(width, height, mipCount, "DX10")
	ext := make([]byte, dx10HeaderSize)
	binary.LittleEndian.PutUint32(ext[0:], dxgiFormat)
	binary.LittleEndian.PutUint32(ext[4:], 3) // D3D10_RESOURCE_DIMENSION_TEXTURE2D
	binary.LittleEndian.PutUint32(ext[12:], 1)
	data = append(data, ext...)

	bpb := dxgiBlockSize(dxgiFormat)
	var total uint32
	for m := uint32(0); m < mipCount; m++ {
		total += blockLevelSize(width, height, m, bpb)
	}
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = fill
	}
	return append(data, payload...)
}

// PayloadSize returns the total payload byte count for a texture with the
// given geometry, every mip level summed. A mipCount of 0 sizes as one
// level, matching the header semantics the tools decode.
func PayloadSize(width, height, mipCount uint32, fourCC string) uint32 {
	if mipCount == 0 {
		mipCount = 1
	}
	var total uint32
	for m := uint32(0); m < mipCount; m++ {
		total += LevelSize(width, height, m, fourCC)
	}
	return total
}

// LevelSize returns the byte size of one mip level for the given FourCC.
func LevelSize(width, height, mip uint32, fourCC string) uint32 {
	switch fourCC {
	case "DXT1", "ATI1", "BC4U":
		return blockLevelSize(width, height, mip, 8)
	case "DXT2", "DXT3", "DXT4", "DXT5", "ATI2", "BC5U", "DX10":
		return blockLevelSize(width, height, mip, 16)
	}
	w := width >> mip
	if w == 0 {
		w = 1
	}
	h := height >> mip
	if h == 0 {
		h = 1
	}
	return w * h * 4
}

func blockLevelSize(width, height, mip, bpb uint32) uint32 {
	w := width >> mip
	if w == 0 {
		w = 1
	}
	h := height >> mip
	if h == 0 {
		h = 1
	}
	return ((w + 3) / 4) * ((h + 3) / 4) * bpb
}

func dxgiBlockSize(id uint32) uint32 {
	switch {
	case id >= 70 && id <= 72, id >= 79 && id <= 81:
		return 8
	}
	return 16
}
