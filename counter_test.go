package quant_test

import (
	"reflect"
	"testing"

	"github.com/setanarut/quant"
)

func TestDistinctColors(t *testing.T) {
	t.Parallel()

	t.Run("Should count unique color triples", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(2, 2, 3)
		copy(buf.Pix, []uint8{
			10, 20, 30,
			10, 20, 30,
			200, 20, 30,
			10, 20, 31,
		})

		got := buf.DistinctColors()

		if got != 3 {
			t.Fatalf("expected 3, but got %v", got)
		}
	})

	t.Run("Should ignore the alpha channel", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(2, 1, 4)
		copy(buf.Pix, []uint8{
			10, 20, 30, 255,
			10, 20, 30, 0,
		})

		got := buf.DistinctColors()

		if got != 1 {
			t.Fatalf("expected 1, but got %v", got)
		}
	})

	t.Run("Should not mutate the buffer", func(t *testing.T) {
		t.Parallel()
		buf := newRGBABuffer()
		original := append([]uint8(nil), buf.Pix...)

		buf.DistinctColors()

		if !reflect.DeepEqual(buf.Pix, original) {
			t.Fatalf("expected %v, but got %v", original, buf.Pix)
		}
	})

	t.Run("Should count large buffers through the parallel path", func(t *testing.T) {
		t.Parallel()
		buf := quant.NewPixelBuffer(256, 128, 3)
		n := buf.W * buf.H
		for i := range n {
			v := uint8(i % 5)
			off := i * 3
			buf.Pix[off] = v
			buf.Pix[off+1] = v * 2
			buf.Pix[off+2] = v * 3
		}

		got := buf.DistinctColors()

		if got != 5 {
			t.Fatalf("expected 5, but got %v", got)
		}
	})
}
