// Package dds decodes the fixed-layout DDS headers embedded in Guitar Hero
// PC archives and computes the exact byte span each texture occupies,
// full mip chain included.
package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	// HeaderSize is the fixed DDS header length, magic included.
	HeaderSize = 128

	// DX10HeaderSize is the length of the DXT10 extension block that
	// follows the base header when the FourCC is the DX10 sentinel.
	DX10HeaderSize = 20

	// FourCCDX10 marks a header whose real format lives in the extension.
	FourCCDX10 = "DX10"
)

// Header field offsets relative to the magic.
const (
	heightOff = 12
	widthOff  = 16
	pitchOff  = 20
	mipOff    = 28
	fourCCOff = 84
)

// Bounds beyond which a header cannot describe a real texture.
const (
	maxDim       = 1 << 20
	maxMipLevels = 32
)

var magic = []byte("DDS ")

var (
	// ErrNoHeader is returned when the data at an offset is too short for
	// a header or does not start with the magic.
	ErrNoHeader = errors.New("dds: no header")

	// ErrUnknownFormat is returned when a DX10 header carries no readable
	// or recognized DXGI format identifier, so no sizing exists for it.
	ErrUnknownFormat = errors.New("dds: unknown format")

	// ErrImplausible is returned when a parsed header declares dimensions
	// or a mip chain no real texture can have.
	ErrImplausible = errors.New("dds: implausible dimensions or mip chain")

	// ErrTruncated is returned when the computed span extends past the end
	// of the data.
	ErrTruncated = errors.New("dds: texture extends past end of data")
)

// Header is a decoded texture descriptor. Instances are derived fresh from
// archive bytes on every pass and never mutated.
type Header struct {
	Width             uint32
	Height            uint32
	MipCount          uint32 // normalized, never 0
	PitchOrLinearSize uint32
	FourCC            string // trimmed, permissively decoded
	DXGI              uint32 // extension format id, meaningful only when HasDXGI
	HasDXGI           bool
}

// Parse decodes the texture header at off.
//
// It fails only when fewer than HeaderSize bytes remain at off or the magic
// does not match. A DX10 header whose extension block is cut off still
// parses; HasDXGI reports whether the extension was readable.
func Parse(data []byte, off int64) (*Header, error) {
	if off < 0 || int64(len(data))-off < HeaderSize {
		return nil, ErrNoHeader
	}
	b := data[off:]
	if !bytes.Equal(b[:4], magic) {
		return nil, ErrNoHeader
	}

	h := &Header{
		Height:            binary.LittleEndian.Uint32(b[heightOff:]),
		Width:             binary.LittleEndian.Uint32(b[widthOff:]),
		PitchOrLinearSize: binary.LittleEndian.Uint32(b[pitchOff:]),
		MipCount:          binary.LittleEndian.Uint32(b[mipOff:]),
		FourCC:            trimFourCC(b[fourCCOff : fourCCOff+4]),
	}
	if h.MipCount == 0 {
		h.MipCount = 1
	}
	if h.FourCC == FourCCDX10 && int64(len(data))-off >= HeaderSize+DX10HeaderSize {
		h.DXGI = binary.LittleEndian.Uint32(b[HeaderSize:])
		h.HasDXGI = true
	}
	return h, nil
}

// trimFourCC decodes the 4 tag bytes permissively: trailing NULs and spaces
// are dropped, remaining bytes outside printable ASCII are substituted
// rather than failing the parse.
func trimFourCC(b []byte) string {
	trimmed := bytes.TrimRight(b, "\x00 ")
	out := make([]byte, len(trimmed))
	for i, c := range trimmed {
		if c < 0x20 || c > 0x7e {
			c = '?'
		}
		out[i] = c
	}
	return string(out)
}

// IsDX10 reports whether the header uses the extended-format sentinel.
func (h *Header) IsDX10() bool {
	return h.FourCC == FourCCDX10
}

// HeaderLen returns the bytes the header occupies in the archive:
// HeaderSize, plus the extension when one was present.
func (h *Header) HeaderLen() int64 {
	if h.IsDX10() && h.HasDXGI {
		return HeaderSize + DX10HeaderSize
	}
	return HeaderSize
}

// blockInfo resolves the bytes-per-block for the header's format.
// compressed is false for unrecognized non-DX10 formats, which size by the
// uncompressed rule instead. DX10 without a usable id cannot be sized.
func (h *Header) blockInfo() (bpb int64, compressed bool, err error) {
	if h.IsDX10() {
		if !h.HasDXGI {
			return 0, false, ErrUnknownFormat
		}
		bpb, ok := dxgiBlockBytes(h.DXGI)
		if !ok {
			return 0, false, ErrUnknownFormat
		}
		return bpb, true, nil
	}
	bpb, ok := blockBytes(h.FourCC)
	return bpb, ok, nil
}

// StoredSize returns the total number of bytes the texture occupies,
// header and every mip level included.
//
// Block-compressed levels are sized as ceil(w/4)*ceil(h/4)*bytesPerBlock.
// Unrecognized non-DX10 formats fall back to the uncompressed rule: level 0
// is PitchOrLinearSize (or width*height*4 when zero) and each further level
// is a quarter of the base, floored at one byte. DX10 headers without a
// usable DXGI id cannot be sized at all.
func (h *Header) StoredSize() (int64, error) {
	if h.Width > maxDim || h.Height > maxDim || h.MipCount > maxMipLevels {
		return 0, ErrImplausible
	}
	bpb, compressed, err := h.blockInfo()
	if err != nil {
		return 0, err
	}

	total := h.HeaderLen()
	for m := uint32(0); m < h.MipCount; m++ {
		total += h.levelSize(m, bpb, compressed)
	}
	return total, nil
}

// LevelSize returns the byte size of mip level m.
func (h *Header) LevelSize(m uint32) (int64, error) {
	bpb, compressed, err := h.blockInfo()
	if err != nil {
		return 0, err
	}
	return h.levelSize(m, bpb, compressed), nil
}

// levelSize returns the byte size of mip level m.
func (h *Header) levelSize(m uint32, bpb int64, compressed bool) int64 {
	w := int64(h.Width >> m)
	if w == 0 {
		w = 1
	}
	ht := int64(h.Height >> m)
	if ht == 0 {
		ht = 1
	}
	if compressed {
		return ((w + 3) / 4) * ((ht + 3) / 4) * bpb
	}
	if m == 0 {
		if h.PitchOrLinearSize != 0 {
			return int64(h.PitchOrLinearSize)
		}
		return int64(h.Width) * int64(h.Height) * 4
	}
	size := int64(h.Width) * int64(h.Height) * 4 >> (2 * m)
	if size < 1 {
		size = 1
	}
	return size
}

// SlotLength parses the texture at off and returns the exact number of
// bytes it occupies in data. The result is bounds-checked against data:
// a span past the end is ErrTruncated, never clamped.
func SlotLength(data []byte, off int64) (int64, error) {
	h, err := Parse(data, off)
	if err != nil {
		return 0, err
	}
	n, err := h.StoredSize()
	if err != nil {
		return 0, err
	}
	if off+n > int64(len(data)) {
		return 0, ErrTruncated
	}
	return n, nil
}

// Scan returns the offset of every magic occurrence in data, in order.
// The search resumes one byte past each match, so accidental occurrences
// inside a texture's payload are reported too; sizing, not scanning,
// decides real boundaries.
func Scan(data []byte) []int64 {
	var offs []int64
	for i := 0; ; {
		j := bytes.Index(data[i:], magic)
		if j < 0 {
			break
		}
		offs = append(offs, int64(i+j))
		i += j + 1
	}
	return offs
}

// NextSignature returns the end bound of the naive slice starting at off:
// the first magic occurrence at or after off+4, else len(data). It exists
// only as the extraction-time backstop for textures sizing cannot handle.
func NextSignature(data []byte, off int64) int64 {
	from := off + 4
	if from > int64(len(data)) {
		return int64(len(data))
	}
	j := bytes.Index(data[from:], magic)
	if j < 0 {
		return int64(len(data))
	}
	return from + int64(j)
}
