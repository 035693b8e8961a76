package quant

// PixelBuffer is a raster image held as one flat sample slice.
type PixelBuffer struct {
	W, H, C int
	Pix     []uint8 // Interleaved samples, len = W*H*C. C is 3 (RGB) or 4 (RGBA).
}

// AlphaChannel holds one transparency sample per pixel, len = W*H.
type AlphaChannel []uint8

func NewPixelBuffer(w, h, c int) *PixelBuffer {
	return &PixelBuffer{W: w, H: h, C: c, Pix: make([]uint8, w*h*c)}
}

// PixOffset returns the index of the first sample of the pixel at (x, y).
func (p *PixelBuffer) PixOffset(x, y int) int {
	return (y*p.W + x) * p.C
}

func (p *PixelBuffer) Clone() *PixelBuffer {
	out := &PixelBuffer{W: p.W, H: p.H, C: p.C, Pix: make([]uint8, len(p.Pix))}
	copy(out.Pix, p.Pix)
	return out
}

// SplitAlpha detaches the transparency plane from a 4-channel buffer and
// returns the remaining RGB samples as a new 3-channel buffer. A
// 3-channel receiver is returned unchanged with a nil alpha.
func (p *PixelBuffer) SplitAlpha() (*PixelBuffer, AlphaChannel) {
	if p.C != 4 {
		return p, nil
	}
	n := p.W * p.H
	rgb := NewPixelBuffer(p.W, p.H, 3)
	alpha := make(AlphaChannel, n)
	for i := 0; i < n; i++ {
		src := i * 4
		dst := i * 3
		rgb.Pix[dst] = p.Pix[src]
		rgb.Pix[dst+1] = p.Pix[src+1]
		rgb.Pix[dst+2] = p.Pix[src+2]
		alpha[i] = p.Pix[src+3]
	}
	return rgb, alpha
}

// MergeAlpha reattaches a previously split transparency plane, producing
// a new 4-channel buffer. A nil alpha returns the receiver unchanged.
// The receiver must be 3-channel and alpha must hold exactly one sample
// per pixel; anything else is ErrDimensionMismatch.
func (p *PixelBuffer) MergeAlpha(alpha AlphaChannel) (*PixelBuffer, error) {
	if alpha == nil {
		return p, nil
	}
	if p.C != 3 || len(alpha) != p.W*p.H {
		return nil, ErrDimensionMismatch
	}
	out := NewPixelBuffer(p.W, p.H, 4)
	for i := range alpha {
		src := i * 3
		dst := i * 4
		out.Pix[dst] = p.Pix[src]
		out.Pix[dst+1] = p.Pix[src+1]
		out.Pix[dst+2] = p.Pix[src+2]
		out.Pix[dst+3] = alpha[i]
	}
	return out, nil
}
