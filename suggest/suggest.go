// Package suggest proposes preview palettes for an image before the
// real quantization runs. It trades reproducibility for speed: colors
// come from a subsampled read of the image and the clustering library
// seeds itself, so two runs may disagree slightly. Use the quantizer's
// own palette when exact output matters.
package suggest

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Method selects how candidate colors are gathered.
type Method int

const (
	// MethodDominant ranks colors with the dominantcolor heuristic.
	MethodDominant Method = iota
	// MethodKMeans clusters a pixel subsample and ranks the centers.
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominant"
	}
}

// ParseMethod maps the CLI spelling to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "dominant":
		return MethodDominant, nil
	case "kmeans":
		return MethodKMeans, nil
	default:
		return 0, fmt.Errorf("suggest: unknown method %q", s)
	}
}

// maxSamples bounds the pixel subsample handed to the clustering
// library so large images stay tractable.
const maxSamples = 12000

type weightedColor struct {
	col    colorful.Color
	weight float64
}

// Extract returns up to k suggested palette colors. A failed k-means
// extraction falls back to the dominant-color heuristic rather than
// returning nothing.
func Extract(img image.Image, k int, method Method) []colorful.Color {
	if k <= 0 {
		return nil
	}
	if method == MethodKMeans {
		if p := extractKMeans(img, k); len(p) != 0 {
			return p
		}
		log.Println("suggest: kmeans returned no colors, falling back to dominant")
	}
	return extractDominant(img, k)
}

func extractDominant(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}

	candidates := dominantcolor.FindWeight(img, max(24, k*8))
	if len(candidates) == 0 {
		// Keep downstream consumers away from an empty palette.
		candidates = append(candidates, dominantcolor.Color{
			RGBA:   color.RGBA{R: 128, G: 128, B: 128, A: 255},
			Weight: 1.0,
		})
	}

	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, weightedColor{
			col:    col.Clamped(),
			weight: math.Max(c.Weight, 1e-6),
		})
	}
	return selectDiverse(weighted, k)
}

func extractKMeans(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}

	step := 1
	if n := b.Dx() * b.Dy(); n > maxSamples {
		step = int(math.Sqrt(float64(n)/float64(maxSamples))) + 1
	}
	dataset := make(clusters.Observations, 0, maxSamples)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	// Over-cluster, then thin the centers down to k diverse picks.
	workK := min(max(k*4, k+2), len(dataset))
	km := kmeans.New()
	cc, err := km.Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}

	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}
		weighted = append(weighted, weightedColor{
			col:    col.Clamped(),
			weight: math.Max(float64(len(c.Observations)), 1e-6),
		})
	}
	return selectDiverse(weighted, k)
}

// selectDiverse picks k colors greedily, scoring each candidate by its
// Lab-space distance to the picks so far scaled by its weight. The
// heaviest candidate seeds the selection so dominant tones survive.
func selectDiverse(cands []weightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	k = min(k, len(cands))

	type item struct {
		col colorful.Color
		lab [3]float64
		w   float64
	}
	items := make([]item, len(cands))
	maxW := 0.0
	for i, c := range cands {
		l, a, b := c.col.Lab()
		items[i] = item{col: c.col, lab: [3]float64{l, a, b}, w: c.weight}
		maxW = math.Max(maxW, c.weight)
	}
	if maxW <= 0 {
		maxW = 1.0
	}

	seed := 0
	for i := 1; i < len(items); i++ {
		if items[i].w > items[seed].w {
			seed = i
		}
	}
	picked := []int{seed}
	taken := make([]bool, len(items))
	taken[seed] = true

	for len(picked) < k {
		bestIdx := -1
		bestScore := -1.0
		for i, it := range items {
			if taken[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, p := range picked {
				d0 := it.lab[0] - items[p].lab[0]
				d1 := it.lab[1] - items[p].lab[1]
				d2 := it.lab[2] - items[p].lab[2]
				minD2 = math.Min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(it.w/maxW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		taken[bestIdx] = true
		picked = append(picked, bestIdx)
	}

	out := make([]colorful.Color, len(picked))
	for i, idx := range picked {
		out[i] = items[idx].col
	}
	return out
}

// SortByLuminance orders colors from darkest to brightest in place.
func SortByLuminance(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		ra, ga, ba := a.LinearRgb()
		rb, gb, bb := b.LinearRgb()
		ya := 0.2126*ra + 0.7152*ga + 0.0722*ba
		yb := 0.2126*rb + 0.7152*gb + 0.0722*bb
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		default:
			return 0
		}
	})
}
