package dds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/testutil"
)

// mustParse parses a header or fails the test.
func mustParse(tb testing.TB, data []byte, off int64) *Header {
	tb.Helper()
	h, err := Parse(data, off)
	require.NoError(tb, err, "Parse failed")
	return h
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("valid header", func(t *testing.T) {
		t.Parallel()
		h := mustParse(t, testutil.DDSHeader(64, 32, 4, "DXT5"), 0)
		assert.Equal(t, uint32(64), h.Width)
		assert.Equal(t, uint32(32), h.Height)
		assert.Equal(t, uint32(4), h.MipCount)
		assert.Equal(t, "DXT5", h.FourCC)
		assert.False(t, h.HasDXGI)
	})

	t.Run("short data", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(make([]byte, HeaderSize-1), 0)
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("offset past end", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSHeader(4, 4, 1, "DXT1")
		_, err := Parse(data, 1)
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("negative offset", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(testutil.DDSHeader(4, 4, 1, "DXT1"), -1)
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSHeader(4, 4, 1, "DXT1")
		data[0] = 'X'
		_, err := Parse(data, 0)
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("zero mip count normalized", func(t *testing.T) {
		t.Parallel()
		h := mustParse(t, testutil.DDSHeader(16, 16, 0, "DXT1"), 0)
		assert.Equal(t, uint32(1), h.MipCount)
	})

	t.Run("fourcc trailing nul and space trimmed", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSHeader(16, 16, 1, "")
		copy(data[84:88], "AB\x00 ")
		h := mustParse(t, data, 0)
		assert.Equal(t, "AB", h.FourCC)
	})

	t.Run("fourcc non-ascii substituted", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSHeader(16, 16, 1, "")
		copy(data[84:88], []byte{0xC3, 'X', 'T', '1'})
		h := mustParse(t, data, 0)
		assert.Equal(t, "?XT1", h.FourCC)
	})

	t.Run("dx10 extension", func(t *testing.T) {
		t.Parallel()
		h := mustParse(t, testutil.DX10Texture(8, 8, 1, 77, 0), 0)
		require.True(t, h.IsDX10())
		require.True(t, h.HasDXGI)
		assert.Equal(t, uint32(77), h.DXGI)
	})

	t.Run("dx10 extension cut off still parses", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSHeader(8, 8, 1, "DX10")
		data = append(data, make([]byte, DX10HeaderSize-1)...)
		h := mustParse(t, data, 0)
		assert.True(t, h.IsDX10())
		assert.False(t, h.HasDXGI, "truncated extension must not report a DXGI id")
	})
}

func TestStoredSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hdr  Header
		want int64
	}{
		{
			// 4x4 DXT1 single level: one 8-byte block after the header.
			name: "dxt1 4x4 single level",
			hdr:  Header{Width: 4, Height: 4, MipCount: 1, FourCC: "DXT1"},
			want: 136,
		},
		{
			name: "dxt5 16x16 three levels",
			hdr:  Header{Width: 16, Height: 16, MipCount: 3, FourCC: "DXT5"},
			want: 128 + 256 + 64 + 16,
		},
		{
			name: "dxt1 rounds partial blocks up",
			hdr:  Header{Width: 10, Height: 6, MipCount: 1, FourCC: "DXT1"},
			want: 128 + 3*2*8,
		},
		{
			name: "mip levels floor at 1x1",
			hdr:  Header{Width: 8, Height: 8, MipCount: 4, FourCC: "DXT1"},
			want: 128 + 32 + 8 + 8 + 8,
		},
		{
			name: "uncompressed uses pitch for level zero",
			hdr:  Header{Width: 8, Height: 8, MipCount: 1, PitchOrLinearSize: 300},
			want: 128 + 300,
		},
		{
			name: "uncompressed falls back to width*height*4",
			hdr:  Header{Width: 8, Height: 8, MipCount: 1},
			want: 128 + 256,
		},
		{
			name: "uncompressed quarters further levels",
			hdr:  Header{Width: 8, Height: 8, MipCount: 3, PitchOrLinearSize: 256},
			want: 128 + 256 + 64 + 16,
		},
		{
			name: "uncompressed level floor at one byte",
			hdr:  Header{Width: 2, Height: 2, MipCount: 3},
			want: 128 + 16 + 4 + 1,
		},
		{
			name: "dx10 bc1",
			hdr:  Header{Width: 8, Height: 8, MipCount: 1, FourCC: "DX10", DXGI: 71, HasDXGI: true},
			want: 148 + 32,
		},
		{
			name: "dx10 bc3 srgb variant",
			hdr:  Header{Width: 4, Height: 4, MipCount: 1, FourCC: "DX10", DXGI: 78, HasDXGI: true},
			want: 148 + 16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.hdr.StoredSize()
			require.NoError(t, err, "StoredSize failed")
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("dx10 without extension", func(t *testing.T) {
		t.Parallel()
		h := Header{Width: 8, Height: 8, MipCount: 1, FourCC: "DX10"}
		_, err := h.StoredSize()
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("dx10 unknown dxgi id", func(t *testing.T) {
		t.Parallel()
		h := Header{Width: 8, Height: 8, MipCount: 1, FourCC: "DX10", DXGI: 28, HasDXGI: true}
		_, err := h.StoredSize()
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("implausible mip chain", func(t *testing.T) {
		t.Parallel()
		h := Header{Width: 8, Height: 8, MipCount: 4000, FourCC: "DXT1"}
		_, err := h.StoredSize()
		assert.ErrorIs(t, err, ErrImplausible)
	})

	t.Run("implausible dimensions", func(t *testing.T) {
		t.Parallel()
		h := Header{Width: 1 << 24, Height: 8, MipCount: 1, FourCC: "DXT1"}
		_, err := h.StoredSize()
		assert.ErrorIs(t, err, ErrImplausible)
	})
}

func TestSlotLength(t *testing.T) {
	t.Parallel()

	t.Run("exact fit", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSTexture(4, 4, 1, "DXT1", 0xAB)
		require.Len(t, data, 136)
		n, err := SlotLength(data, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(136), n)
	})

	t.Run("zero mip count equals one", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSTexture(4, 4, 0, "DXT1", 0xAB)
		withZero, err := SlotLength(data, 0)
		require.NoError(t, err)
		one := testutil.DDSTexture(4, 4, 1, "DXT1", 0xAB)
		withOne, err := SlotLength(one, 0)
		require.NoError(t, err)
		assert.Equal(t, withOne, withZero)
	})

	t.Run("span past end", func(t *testing.T) {
		t.Parallel()
		data := testutil.DDSTexture(16, 16, 2, "DXT5", 0xAB)
		_, err := SlotLength(data[:len(data)-1], 0)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("mid archive", func(t *testing.T) {
		t.Parallel()
		tex := testutil.DDSTexture(8, 8, 2, "DXT5", 0x11)
		arc := append(append(make([]byte, 100), tex...), make([]byte, 50)...)
		n, err := SlotLength(arc, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(len(tex)), n)
	})
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Scan(nil))
	})

	t.Run("two textures back to back", func(t *testing.T) {
		t.Parallel()
		first := testutil.DDSTexture(4, 4, 1, "DXT1", 0xAA)
		second := testutil.DDSTexture(8, 8, 1, "DXT5", 0xBB)
		arc := append(append([]byte{}, first...), second...)

		offs := Scan(arc)
		require.Equal(t, []int64{0, int64(len(first))}, offs)

		n, err := SlotLength(arc, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(len(first)), n, "slot length must equal the true span")
	})

	t.Run("accidental magic in payload", func(t *testing.T) {
		t.Parallel()
		first := testutil.DDSTexture(16, 16, 1, "DXT5", 0xAA)
		copy(first[140:], "DDS ") // payload bytes that happen to look like a signature
		second := testutil.DDSTexture(4, 4, 1, "DXT1", 0xBB)
		arc := append(append([]byte{}, first...), second...)

		offs := Scan(arc)
		require.Len(t, offs, 3, "scan reports the accidental hit too")

		// Sizing is unaffected by the misleading scan hit.
		n, err := SlotLength(arc, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(len(first)), n)
		assert.NotEqual(t, NextSignature(arc, 0), n,
			"the naive next-signature bound disagrees here")
	})

	t.Run("overlapping signatures", func(t *testing.T) {
		t.Parallel()
		offs := Scan([]byte("DDS DDS "))
		assert.Equal(t, []int64{0, 4}, offs)
	})
}

func TestNextSignature(t *testing.T) {
	t.Parallel()

	t.Run("skips own magic", func(t *testing.T) {
		t.Parallel()
		data := []byte("DDS xxxxDDS ")
		assert.Equal(t, int64(8), NextSignature(data, 0))
	})

	t.Run("no next signature", func(t *testing.T) {
		t.Parallel()
		data := []byte("DDS xxxx")
		assert.Equal(t, int64(len(data)), NextSignature(data, 0))
	})

	t.Run("near end of data", func(t *testing.T) {
		t.Parallel()
		data := []byte("xxDDS")
		assert.Equal(t, int64(len(data)), NextSignature(data, 2))
	})
}

func TestTexconvFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hdr  Header
		want string
		ok   bool
	}{
		{name: "dxt1", hdr: Header{FourCC: "DXT1"}, want: "BC1_UNORM", ok: true},
		{name: "dxt3", hdr: Header{FourCC: "DXT3"}, want: "BC2_UNORM", ok: true},
		{name: "dxt5", hdr: Header{FourCC: "DXT5"}, want: "BC3_UNORM", ok: true},
		{name: "ati2", hdr: Header{FourCC: "ATI2"}, want: "BC5_UNORM", ok: true},
		{name: "unknown fourcc", hdr: Header{FourCC: "RGBA"}, ok: false},
		{name: "dx10 bc3", hdr: Header{FourCC: "DX10", DXGI: 77, HasDXGI: true}, want: "BC3_UNORM", ok: true},
		{name: "dx10 unknown id", hdr: Header{FourCC: "DX10", DXGI: 28, HasDXGI: true}, ok: false},
		{name: "dx10 without id", hdr: Header{FourCC: "DX10"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := TexconvFormat(&tt.hdr)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
