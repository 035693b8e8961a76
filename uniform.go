package quant

import "math"

// uniformTable builds the 256-entry sample mapping for n shades. Each
// value picks a level with floor((v/255)*n), and the level is rescaled
// by 255/(n-1) and rounded. v=255 lands one level past the top and the
// clamp folds it back to 255.
func uniformTable(n int) [256]uint8 {
	var lut [256]uint8
	shades := float64(n)
	for v := 0; v < 256; v++ {
		level := math.Floor(float64(v) / 255.0 * shades)
		out := math.Round(level / (shades - 1.0) * 255.0)
		lut[v] = uint8(max(0, min(255, out)))
	}
	return lut
}

// UniformLevels returns, in ascending order, the channel values the
// uniform quantizer can produce for n shades.
func UniformLevels(n int) ([]uint8, error) {
	if n < 2 {
		return nil, ErrInvalidShadeCount
	}
	lut := uniformTable(n)
	var seen [256]bool
	for _, v := range lut {
		seen[v] = true
	}
	levels := make([]uint8, 0, min(n, 256))
	for v := 0; v < 256; v++ {
		if seen[v] {
			levels = append(levels, uint8(v))
		}
	}
	return levels, nil
}

// UniformQuantize maps every color sample of buf onto one of n evenly
// spaced levels and returns the result as a new buffer; buf is left
// untouched. The mapping is a pure per-sample function, so samples are
// processed in parallel chunks. Alpha samples of a 4-channel buffer are
// copied through unchanged. n < 2 is ErrInvalidShadeCount.
func UniformQuantize(buf *PixelBuffer, n, workers int) (*PixelBuffer, error) {
	if n < 2 {
		return nil, ErrInvalidShadeCount
	}
	lut := uniformTable(n)
	out := NewPixelBuffer(buf.W, buf.H, buf.C)
	stride := buf.C
	parallelChunks(buf.W*buf.H, workers, func(start, end, _ int) {
		for i := start; i < end; i++ {
			off := i * stride
			out.Pix[off] = lut[buf.Pix[off]]
			out.Pix[off+1] = lut[buf.Pix[off+1]]
			out.Pix[off+2] = lut[buf.Pix[off+2]]
			if stride == 4 {
				out.Pix[off+3] = buf.Pix[off+3]
			}
		}
	})
	return out, nil
}
