// Package imgio moves pixel buffers in and out of image files.
//
// It decodes PNG, JPEG, GIF, BMP, TIFF and WebP into the flat buffer
// the quantizers work on, and encodes results back to any of those
// formats except WebP. Decoded images keep their alpha channel only
// when the source actually carries one, so an opaque photo stays a
// 3-channel buffer end to end.
package imgio

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/setanarut/quant"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for output extensions no encoder
// is registered for.
var ErrUnsupportedFormat = errors.New("imgio: unsupported output format")

const jpegQuality = 95

// LoadImage decodes the file at path into a standard library image.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imgio: open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imgio: decode %s: %w", path, err)
	}
	return img, nil
}

// Load decodes the file at path into a pixel buffer. The buffer gets 4
// channels when the decoded image carries alpha, 3 otherwise.
func Load(path string) (*quant.PixelBuffer, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// FromImage flattens img into an interleaved 8-bit buffer.
func FromImage(img image.Image) *quant.PixelBuffer {
	if hasAlpha(img) {
		return fromImageNRGBA(img)
	}
	return fromImageRGB(img)
}

// hasAlpha reports whether the decoded image should keep a fourth
// channel. Non-premultiplied types carry alpha by declaration; the
// premultiplied and paletted ones only when some pixel is actually
// translucent.
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	case *image.RGBA:
		return !m.Opaque()
	case *image.RGBA64:
		return !m.Opaque()
	case *image.Paletted:
		return !m.Opaque()
	default:
		return false
	}
}

func fromImageNRGBA(img image.Image) *quant.PixelBuffer {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	buf := quant.NewPixelBuffer(b.Dx(), b.Dy(), 4)
	for y := 0; y < buf.H; y++ {
		src := nrgba.PixOffset(nrgba.Rect.Min.X, nrgba.Rect.Min.Y+y)
		dst := buf.PixOffset(0, y)
		copy(buf.Pix[dst:dst+buf.W*4], nrgba.Pix[src:src+buf.W*4])
	}
	return buf
}

func fromImageRGB(img image.Image) *quant.PixelBuffer {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || !rgba.Rect.Min.Eq(image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	buf := quant.NewPixelBuffer(b.Dx(), b.Dy(), 3)
	for i := range buf.W * buf.H {
		src := i * 4
		dst := i * 3
		buf.Pix[dst] = rgba.Pix[src]
		buf.Pix[dst+1] = rgba.Pix[src+1]
		buf.Pix[dst+2] = rgba.Pix[src+2]
	}
	return buf
}

// ToImage turns a pixel buffer back into a standard library image: an
// *image.NRGBA for 4 channels, an opaque *image.RGBA for 3.
func ToImage(buf *quant.PixelBuffer) image.Image {
	if buf.C == 4 {
		img := image.NewNRGBA(image.Rect(0, 0, buf.W, buf.H))
		for y := range buf.H {
			src := buf.PixOffset(0, y)
			dst := img.PixOffset(0, y)
			copy(img.Pix[dst:dst+buf.W*4], buf.Pix[src:src+buf.W*4])
		}
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, buf.W, buf.H))
	for i := range buf.W * buf.H {
		src := i * 3
		dst := i * 4
		img.Pix[dst] = buf.Pix[src]
		img.Pix[dst+1] = buf.Pix[src+1]
		img.Pix[dst+2] = buf.Pix[src+2]
		img.Pix[dst+3] = 255
	}
	return img
}

// Save encodes the buffer to path. The format follows the extension.
func Save(buf *quant.PixelBuffer, path string) error {
	return saveImage(ToImage(buf), path)
}

// saveImage encodes img to path, creating parent directories as
// needed. The encoder is resolved before the file is created and the
// file is removed again on any encode or close failure, so a bad run
// never leaves a partial image behind.
func saveImage(img image.Image, path string) error {
	encode, err := encoderFor(filepath.Ext(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("imgio: create output directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imgio: create %s: %w", path, err)
	}
	if err := encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("imgio: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("imgio: close %s: %w", path, err)
	}
	return nil
}

func encoderFor(ext string) (func(io.Writer, image.Image) error, error) {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: jpegQuality})
		}, nil
	case ".gif":
		return func(w io.Writer, m image.Image) error {
			return gif.Encode(w, m, nil)
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, nil)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DecodableExtension reports whether files with the given extension
// can be loaded. WebP is decode-only.
func DecodableExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	default:
		return false
	}
}
