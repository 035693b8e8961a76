// Package quant reduces the number of distinct colors in raster images.
// It works on interleaved 8-bit pixel buffers and offers two reduction
// strategies: seeded k-means clustering over the full pixel multiset,
// and a uniform per-channel shade grid. Quantization touches RGB only;
// the alpha channel of a 4-channel buffer passes through untouched and
// a 3-channel buffer stays 3-channel.
package quant

import "context"

// Mode selects the reduction strategy.
type Mode int

const (
	// ModeKMeans discovers a palette by clustering the image's colors.
	ModeKMeans Mode = iota
	// ModeUniform snaps every channel to a uniform shade grid.
	ModeUniform
)

func (m Mode) String() string {
	switch m {
	case ModeKMeans:
		return "kmeans"
	case ModeUniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// Options configure a quantization run.
type Options struct {
	// Mode picks the strategy. ModeKMeans is the default.
	Mode Mode
	// Count is the palette size for ModeKMeans (min 1) or the number of
	// shades per channel for ModeUniform (min 2).
	Count int
	// Seed for the k-means pseudo-random source. Ignored by ModeUniform.
	Seed int64
	// Restarts is the number of independent k-means initializations.
	Restarts int
	// MaxIterations bounds each k-means restart.
	MaxIterations int
	// Workers caps parallelism. 0 uses all CPUs.
	Workers int
}

func DefaultOptions() Options {
	return Options{
		Mode:          ModeKMeans,
		Count:         16,
		Seed:          42,
		Restarts:      10,
		MaxIterations: 300,
	}
}

// Report compares the color population before and after quantization.
type Report struct {
	OriginalColors  int `json:"original_colors"`
	QuantizedColors int `json:"quantized_colors"`
}

// Result is the outcome of a full quantization run.
type Result struct {
	// Buffer has the same dimensions and channel count as the input.
	Buffer *PixelBuffer
	// Palette and Assignment are populated by ModeKMeans only.
	Palette    Palette
	Assignment []int32
	Report     Report
}

// Quantize runs the full pipeline: split off alpha, count distinct
// colors, reduce, count again, merge alpha back. Counting always ignores
// alpha, so the report reads the same for a photo and for the same photo
// with an alpha channel bolted on.
func Quantize(ctx context.Context, buf *PixelBuffer, opts Options) (*Result, error) {
	rgb, alpha := buf.SplitAlpha()
	res := &Result{}
	res.Report.OriginalColors = rgb.DistinctColors()

	var quantized *PixelBuffer
	switch opts.Mode {
	case ModeUniform:
		out, err := UniformQuantize(rgb, opts.Count, opts.Workers)
		if err != nil {
			return nil, err
		}
		quantized = out
	default:
		cr, err := ClusterQuantize(ctx, rgb, ClusterOptions{
			K:             opts.Count,
			Seed:          opts.Seed,
			Restarts:      opts.Restarts,
			MaxIterations: opts.MaxIterations,
			Workers:       opts.Workers,
		})
		if err != nil {
			return nil, err
		}
		quantized = cr.Buffer
		res.Palette = cr.Palette
		res.Assignment = cr.Assignment
	}

	res.Report.QuantizedColors = quantized.DistinctColors()

	merged, err := quantized.MergeAlpha(alpha)
	if err != nil {
		return nil, err
	}
	res.Buffer = merged
	return res, nil
}
