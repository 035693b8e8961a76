package quant

import (
	"runtime"
	"sync"
)

// colorKey packs an RGB triple into a uint32 map key. uint32 keys hit
// the runtime's fast map path.
func colorKey(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func keyColor(k uint32) RGB {
	return RGB{R: uint8(k >> 16), G: uint8(k >> 8), B: uint8(k)}
}

// DistinctColors returns the number of unique (R,G,B) triples in the
// buffer. Alpha samples are ignored and the buffer is not mutated.
func (p *PixelBuffer) DistinctColors() int {
	return len(p.histogram())
}

// histogram counts pixels per packed color key. Workers build partial
// histograms over disjoint pixel ranges and the partials are merged at
// the end; addition commutes, so the result does not depend on worker
// scheduling.
func (p *PixelBuffer) histogram() map[uint32]int {
	n := p.W * p.H
	stride := p.C
	parts := runtime.GOMAXPROCS(0)
	if n < 1<<14 {
		parts = 1
	}
	if parts == 1 {
		hist := make(map[uint32]int, min(n, 1<<12))
		for i := 0; i < n; i++ {
			off := i * stride
			hist[colorKey(p.Pix[off], p.Pix[off+1], p.Pix[off+2])]++
		}
		return hist
	}

	partials := make([]map[uint32]int, parts)
	var wg sync.WaitGroup
	for w := 0; w < parts; w++ {
		w := w
		start := w * n / parts
		end := (w + 1) * n / parts
		wg.Add(1)
		go func() {
			defer wg.Done()
			hist := make(map[uint32]int, 1<<12)
			for i := start; i < end; i++ {
				off := i * stride
				hist[colorKey(p.Pix[off], p.Pix[off+1], p.Pix[off+2])]++
			}
			partials[w] = hist
		}()
	}
	wg.Wait()

	total := partials[0]
	for _, part := range partials[1:] {
		for k, c := range part {
			total[k] += c
		}
	}
	return total
}
