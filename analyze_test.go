package quant_test

import (
	"math"
	"testing"

	"github.com/setanarut/quant"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("Should compute channel statistics", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(2, 2, 3)
		copy(buf.Pix, []uint8{
			0, 10, 20,
			0, 10, 20,
			255, 30, 40,
			255, 30, 40,
		})

		s := quant.Analyze(buf)

		r := s.Channel[0]
		if r.Min != 0 || r.Max != 255 {
			t.Fatalf("expected range 0..255, but got %d..%d", r.Min, r.Max)
		}
		if r.Mean != 127.5 {
			t.Fatalf("expected mean 127.5, but got %v", r.Mean)
		}
		expectedStd := math.Sqrt(4 * 127.5 * 127.5 / 3)
		if math.Abs(r.StdDev-expectedStd) > 1e-9 {
			t.Fatalf("expected std %v, but got %v", expectedStd, r.StdDev)
		}
		g := s.Channel[1]
		if g.Min != 10 || g.Max != 30 || g.Mean != 20 {
			t.Fatalf("expected 10..30 around 20, but got %+v", g)
		}
	})

	t.Run("Should compute the color entropy in bits", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(2, 2, 3)
		copy(buf.Pix, []uint8{
			0, 0, 0,
			0, 0, 0,
			255, 255, 255,
			255, 255, 255,
		})

		s := quant.Analyze(buf)

		if math.Abs(s.EntropyBits-1) > 1e-9 {
			t.Fatalf("expected 1 bit, but got %v", s.EntropyBits)
		}
		if s.DistinctColors != 2 {
			t.Fatalf("expected 2 colors, but got %v", s.DistinctColors)
		}
	})

	t.Run("Should find the dominant color", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(2, 2, 3)
		copy(buf.Pix, []uint8{
			7, 8, 9,
			7, 8, 9,
			7, 8, 9,
			1, 2, 3,
		})

		s := quant.Analyze(buf)

		if (s.TopColor != quant.RGB{R: 7, G: 8, B: 9}) {
			t.Fatalf("expected {7 8 9}, but got %v", s.TopColor)
		}
		if s.TopColorShare != 0.75 {
			t.Fatalf("expected share 0.75, but got %v", s.TopColorShare)
		}
	})

	t.Run("Should handle a single pixel", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(1, 1, 3)
		copy(buf.Pix, []uint8{42, 42, 42})

		s := quant.Analyze(buf)

		if s.Channel[0].StdDev != 0 {
			t.Fatalf("expected zero spread, but got %v", s.Channel[0].StdDev)
		}
		if s.EntropyBits != 0 {
			t.Fatalf("expected zero entropy, but got %v", s.EntropyBits)
		}
		if s.TopColorShare != 1 {
			t.Fatalf("expected share 1, but got %v", s.TopColorShare)
		}
	})

	t.Run("Should ignore alpha samples", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(2, 1, 4)
		copy(buf.Pix, []uint8{
			100, 100, 100, 0,
			100, 100, 100, 255,
		})

		s := quant.Analyze(buf)

		if s.DistinctColors != 1 {
			t.Fatalf("expected 1 color, but got %v", s.DistinctColors)
		}
		if s.Channel[0].Mean != 100 {
			t.Fatalf("expected mean 100, but got %v", s.Channel[0].Mean)
		}
		if s.Channels != 4 {
			t.Fatalf("expected 4 channels, but got %v", s.Channels)
		}
	})

	t.Run("Should handle an empty buffer", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(0, 0, 3)

		s := quant.Analyze(buf)

		if s.DistinctColors != 0 || s.EntropyBits != 0 {
			t.Fatalf("expected zeroed stats, but got %+v", s)
		}
	})
}
