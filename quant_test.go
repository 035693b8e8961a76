package quant_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/setanarut/quant"
)

func TestQuantize(t *testing.T) {
	t.Parallel()

	t.Run("Should keep a 3-channel image 3-channel", func(t *testing.T) {
		t.Parallel()
		buf := noiseBuffer(16, 16)
		opts := quant.DefaultOptions()
		opts.Count = 4

		res, err := quant.Quantize(context.Background(), buf, opts)

		if err != nil {
			t.Fatalf("expected nil error, but got %v", err)
		}
		if res.Buffer.C != 3 {
			t.Fatalf("expected 3 channels, but got %v", res.Buffer.C)
		}
	})

	t.Run("Should keep a 4-channel image 4-channel and carry alpha through", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(8, 8, 4)
		for i := range 64 {
			off := i * 4
			buf.Pix[off] = uint8(i * 4)
			buf.Pix[off+1] = uint8(i * 3)
			buf.Pix[off+2] = uint8(i * 2)
			buf.Pix[off+3] = uint8(255 - i)
		}
		opts := quant.DefaultOptions()
		opts.Count = 4

		res, err := quant.Quantize(context.Background(), buf, opts)

		if err != nil {
			t.Fatalf("expected nil error, but got %v", err)
		}
		if res.Buffer.C != 4 {
			t.Fatalf("expected 4 channels, but got %v", res.Buffer.C)
		}
		for i := range 64 {
			if res.Buffer.Pix[i*4+3] != buf.Pix[i*4+3] {
				t.Fatalf("expected alpha %v at pixel %d, but got %v", buf.Pix[i*4+3], i, res.Buffer.Pix[i*4+3])
			}
		}
	})

	t.Run("Should report the color counts around the run", func(t *testing.T) {
		t.Parallel()
		buf := noiseBuffer(32, 32)
		original := buf.DistinctColors()
		opts := quant.DefaultOptions()
		opts.Count = 8

		res, err := quant.Quantize(context.Background(), buf, opts)

		if err != nil {
			t.Fatalf("expected nil error, but got %v", err)
		}
		if res.Report.OriginalColors != original {
			t.Fatalf("expected %d original colors, but got %d", original, res.Report.OriginalColors)
		}
		if res.Report.QuantizedColors > opts.Count {
			t.Fatalf("expected at most %d colors, but got %d", opts.Count, res.Report.QuantizedColors)
		}
		if res.Report.QuantizedColors > res.Report.OriginalColors {
			t.Fatalf("expected no more colors than %d, but got %d", res.Report.OriginalColors, res.Report.QuantizedColors)
		}
	})

	t.Run("Should never grow the color count in uniform mode", func(t *testing.T) {
		t.Parallel()
		buf := noiseBuffer(32, 32)
		opts := quant.DefaultOptions()
		opts.Mode = quant.ModeUniform
		opts.Count = 4

		res, err := quant.Quantize(context.Background(), buf, opts)

		if err != nil {
			t.Fatalf("expected nil error, but got %v", err)
		}
		if res.Report.QuantizedColors > res.Report.OriginalColors {
			t.Fatalf("expected no more colors than %d, but got %d", res.Report.OriginalColors, res.Report.QuantizedColors)
		}
		if res.Palette != nil {
			t.Fatalf("expected no palette in uniform mode, but got %v", res.Palette)
		}
	})

	t.Run("Should quantize the two-level scenario exactly", func(t *testing.T) {
		t.Parallel()
		buf := newRGBABuffer()
		opts := quant.DefaultOptions()
		opts.Mode = quant.ModeUniform
		opts.Count = 2

		res, err := quant.Quantize(context.Background(), buf, opts)

		if err != nil {
			t.Fatalf("expected nil error, but got %v", err)
		}
		if !reflect.DeepEqual(res.Buffer.Pix, buf.Pix) {
			t.Fatalf("expected %v, but got %v", buf.Pix, res.Buffer.Pix)
		}
		if res.Report.OriginalColors != 2 || res.Report.QuantizedColors != 2 {
			t.Fatalf("expected a 2/2 report, but got %+v", res.Report)
		}
	})

	t.Run("Should populate palette and assignment in k-means mode", func(t *testing.T) {
		t.Parallel()
		buf := noiseBuffer(16, 16)
		opts := quant.DefaultOptions()
		opts.Count = 5

		res, err := quant.Quantize(context.Background(), buf, opts)

		if err != nil {
			t.Fatalf("expected nil error, but got %v", err)
		}
		if len(res.Palette) != 5 {
			t.Fatalf("expected 5 palette entries, but got %d", len(res.Palette))
		}
		if len(res.Assignment) != buf.W*buf.H {
			t.Fatalf("expected %d labels, but got %d", buf.W*buf.H, len(res.Assignment))
		}
	})

	t.Run("Should surface invalid shade counts", func(t *testing.T) {
		t.Parallel()
		buf := noiseBuffer(4, 4)
		opts := quant.DefaultOptions()
		opts.Mode = quant.ModeUniform
		opts.Count = 1

		_, err := quant.Quantize(context.Background(), buf, opts)

		if !errors.Is(err, quant.ErrInvalidShadeCount) {
			t.Fatalf("expected ErrInvalidShadeCount, but got %v", err)
		}
	})

	t.Run("Should surface invalid cluster counts", func(t *testing.T) {
		t.Parallel()
		buf := noiseBuffer(4, 4)
		opts := quant.DefaultOptions()
		opts.Count = 0

		_, err := quant.Quantize(context.Background(), buf, opts)

		if !errors.Is(err, quant.ErrInvalidClusterCount) {
			t.Fatalf("expected ErrInvalidClusterCount, but got %v", err)
		}
	})
}

func TestModeString(t *testing.T) {
	t.Parallel()

	if got := quant.ModeKMeans.String(); got != "kmeans" {
		t.Fatalf("expected kmeans, but got %v", got)
	}
	if got := quant.ModeUniform.String(); got != "uniform" {
		t.Fatalf("expected uniform, but got %v", got)
	}
	if got := quant.Mode(9).String(); got != "unknown" {
		t.Fatalf("expected unknown, but got %v", got)
	}
}
