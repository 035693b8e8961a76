package quant

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ChannelStats summarize one channel's sample distribution.
type ChannelStats struct {
	Min    uint8   `json:"min"`
	Max    uint8   `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Stats describe an image's color population. EntropyBits is the
// Shannon entropy of the distinct-color distribution, so it tops out at
// log2(DistinctColors).
type Stats struct {
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Channels       int             `json:"channels"`
	DistinctColors int             `json:"distinct_colors"`
	EntropyBits    float64         `json:"entropy_bits"`
	Channel        [3]ChannelStats `json:"channel"`
	TopColor       RGB             `json:"top_color"`
	TopColorShare  float64         `json:"top_color_share"`
}

// Analyze computes color statistics for the buffer. Alpha samples are
// ignored throughout, matching how quantization treats them.
func Analyze(buf *PixelBuffer) *Stats {
	s := &Stats{Width: buf.W, Height: buf.H, Channels: buf.C}
	n := buf.W * buf.H
	if n == 0 {
		return s
	}

	var bins [3][256]float64
	stride := buf.C
	for i := 0; i < n; i++ {
		off := i * stride
		bins[0][buf.Pix[off]]++
		bins[1][buf.Pix[off+1]]++
		bins[2][buf.Pix[off+2]]++
	}

	var values [256]float64
	for v := range values {
		values[v] = float64(v)
	}
	for ch := 0; ch < 3; ch++ {
		cs := &s.Channel[ch]
		for v := 0; v < 256; v++ {
			if bins[ch][v] > 0 {
				cs.Min = uint8(v)
				break
			}
		}
		for v := 255; v >= 0; v-- {
			if bins[ch][v] > 0 {
				cs.Max = uint8(v)
				break
			}
		}
		mean, std := stat.MeanStdDev(values[:], bins[ch][:])
		if math.IsNaN(std) {
			std = 0 // a single pixel has no spread
		}
		cs.Mean = mean
		cs.StdDev = std
	}

	hist := buf.histogram()
	s.DistinctColors = len(hist)

	// Keys are sorted so the probability vector and the top-color
	// tie-break come out the same on every run.
	keys := make([]uint32, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	p := make([]float64, len(keys))
	topKey := keys[0]
	topCount := 0
	for i, k := range keys {
		c := hist[k]
		p[i] = float64(c) / float64(n)
		if c > topCount {
			topCount = c
			topKey = k
		}
	}
	s.EntropyBits = stat.Entropy(p) / math.Ln2
	s.TopColor = keyColor(topKey)
	s.TopColorShare = float64(topCount) / float64(n)
	return s
}
