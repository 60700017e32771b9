package imaging

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRGBA(t *testing.T) {
	t.Parallel()

	t.Run("dxt1 single block", func(t *testing.T) {
		t.Parallel()
		img, err := DecodeRGBA(make([]byte, 8), 4, 4, "DXT1")
		require.NoError(t, err, "DecodeRGBA failed")
		assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
		assert.Len(t, img.Pix, 4*4*4)
	})

	t.Run("dxt5 single block", func(t *testing.T) {
		t.Parallel()
		img, err := DecodeRGBA(make([]byte, 16), 4, 4, "DXT5")
		require.NoError(t, err, "DecodeRGBA failed")
		assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
	})

	t.Run("unsupported format", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeRGBA(make([]byte, 16), 4, 4, "DXT3")
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

// writeTestPNG writes a width x height PNG and returns its path.
func writeTestPNG(tb testing.TB, dir string, width, height int) string {
	tb.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 31), G: uint8(y * 31), B: 0x80, A: 0xFF})
		}
	}
	path := filepath.Join(dir, "src.png")
	require.NoError(tb, WritePNG(img, path), "WritePNG failed")
	return path
}

func TestFit(t *testing.T) {
	t.Parallel()

	t.Run("resizes to target dimensions", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 8, 8)
		dst := filepath.Join(dir, "fitted.png")

		resized, err := Fit(src, dst, 4, 4)
		require.NoError(t, err, "Fit failed")
		require.True(t, resized)

		f, err := os.Open(dst)
		require.NoError(t, err)
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Width)
		assert.Equal(t, 4, cfg.Height)
	})

	t.Run("matching dimensions write nothing", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 4, 4)
		dst := filepath.Join(dir, "fitted.png")

		resized, err := Fit(src, dst, 4, 4)
		require.NoError(t, err, "Fit failed")
		assert.False(t, resized)
		_, err = os.Stat(dst)
		assert.True(t, os.IsNotExist(err), "no file expected for a matching source")
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		_, err := Fit(filepath.Join(t.TempDir(), "absent.png"), "out.png", 4, 4)
		assert.Error(t, err)
	})
}
