// Package imaging converts between embedded texture payloads and portable
// PNG images: level-0 previews on extraction, and dimension fitting of
// replacement images before recompression.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/mauserzjeh/dxt"
	xdraw "golang.org/x/image/draw"
)

// ErrUnsupported is returned when no in-process decoder exists for a
// texture format. Callers skip the preview and keep the raw artifact.
var ErrUnsupported = errors.New("imaging: unsupported format")

// DecodeRGBA decodes the level-0 payload of a block-compressed texture
// into an RGBA image. DXT1 and DXT5 are handled in process; anything else
// is ErrUnsupported.
func DecodeRGBA(payload []byte, width, height uint32, fourCC string) (*image.RGBA, error) {
	var pix []byte
	var err error
	switch fourCC {
	case "DXT1":
		pix, err = dxt.DecodeDXT1(payload, uint(width), uint(height))
	case "DXT5":
		pix, err = dxt.DecodeDXT5(payload, uint(width), uint(height))
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fourCC, err)
	}
	return &image.RGBA{
		Pix:    pix,
		Stride: int(width) * 4,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}, nil
}

// WritePNG encodes img to path.
func WritePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Fit scales the image at srcPath to width x height and writes the result
// as PNG to dstPath. When the source already matches, nothing is written
// and Fit reports false.
func Fit(srcPath, dstPath string, width, height int) (bool, error) {
	img, err := imgio.Open(srcPath)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", srcPath, err)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return false, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	if err := WritePNG(dst, dstPath); err != nil {
		return false, fmt.Errorf("write %s: %w", dstPath, err)
	}
	return true, nil
}
