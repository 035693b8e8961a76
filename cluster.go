package quant

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
)

// ClusterOptions control the k-means quantizer. The defaults reproduce
// the reference pipeline: seed 42, 10 restarts, 300 iteration cap.
type ClusterOptions struct {
	// K is the requested palette size. The effective size is capped at
	// the number of distinct input colors.
	K int
	// Seed feeds the root pseudo-random source. Every restart draws its
	// own sub-seed from it up front, so equal seeds give identical
	// results no matter how the restarts are scheduled.
	Seed int64
	// Restarts is the number of independent initializations. The restart
	// with the lowest total intra-cluster squared distance wins; ties go
	// to the earliest restart.
	Restarts int
	// MaxIterations bounds each restart's assign/recenter loop.
	MaxIterations int
	// Workers caps the parallelism across restarts and across pixel
	// chunks combined. 0 uses all CPUs.
	Workers int
}

func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		K:             16,
		Seed:          42,
		Restarts:      10,
		MaxIterations: 300,
	}
}

// ClusterResult carries the quantized buffer together with the palette
// and the per-pixel labels that produced it.
type ClusterResult struct {
	Buffer  *PixelBuffer
	Palette Palette
	// Assignment holds one palette index per pixel. These are the
	// training-time labels of the winning restart, not the product of a
	// second nearest-neighbor pass.
	Assignment []int32
	// Inertia is the winning restart's total intra-cluster squared
	// distance. Zero when the distinct-color fast path was taken.
	Inertia float64
	// Iterations spent by the winning restart.
	Iterations int
}

// ClusterQuantize discovers a palette of at most opts.K colors over the
// full pixel multiset and rebuilds the buffer from it. Centroid channels
// are truncated, not rounded, to 8 bits; that matches the historical
// output bit for bit. Alpha samples of a 4-channel buffer are copied
// through untouched. The context is checked between iterations, so a
// canceled run returns promptly with no result.
func ClusterQuantize(ctx context.Context, buf *PixelBuffer, opts ClusterOptions) (*ClusterResult, error) {
	if opts.K < 1 {
		return nil, ErrInvalidClusterCount
	}
	n := buf.W * buf.H
	if n == 0 {
		return nil, ErrEmptyImage
	}
	opts.Restarts = max(opts.Restarts, 1)
	opts.MaxIterations = max(opts.MaxIterations, 1)

	if pal, labels, ok := identityMapping(buf, opts.K); ok {
		return &ClusterResult{Buffer: buf.Clone(), Palette: pal, Assignment: labels}, nil
	}

	// Sub-seeds are drawn sequentially before anything runs so the
	// restart schedule never depends on goroutine timing.
	root := rand.New(rand.NewSource(opts.Seed))
	seeds := make([]int64, opts.Restarts)
	for i := range seeds {
		seeds[i] = root.Int63()
	}

	// Restart-level and chunk-level workers multiply out to roughly the
	// requested worker count.
	conc := min(workerCount(opts.Workers), opts.Restarts)
	inner := max(workerCount(opts.Workers)/conc, 1)

	runs := make([]*kmeansRun, opts.Restarts)
	sem := make(chan struct{}, conc)
	var wg sync.WaitGroup
	for i := 0; i < opts.Restarts; i++ {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			runs[i] = newKmeansRun(buf, opts.K, opts.MaxIterations, inner, seeds[i])
			runs[i].train(ctx)
		}()
	}
	wg.Wait()

	var best *kmeansRun
	for _, run := range runs {
		if run.err != nil {
			return nil, run.err
		}
		if best == nil || run.inertia < best.inertia {
			best = run
		}
	}

	pal := make(Palette, opts.K)
	for c := 0; c < opts.K; c++ {
		pal[c] = RGB{
			R: uint8(best.centroids[c*3]),
			G: uint8(best.centroids[c*3+1]),
			B: uint8(best.centroids[c*3+2]),
		}
	}

	out := NewPixelBuffer(buf.W, buf.H, buf.C)
	stride := buf.C
	parallelChunks(n, opts.Workers, func(start, end, _ int) {
		for i := start; i < end; i++ {
			col := pal[best.labels[i]]
			off := i * stride
			out.Pix[off] = col.R
			out.Pix[off+1] = col.G
			out.Pix[off+2] = col.B
			if stride == 4 {
				out.Pix[off+3] = buf.Pix[off+3]
			}
		}
	})

	return &ClusterResult{
		Buffer:     out,
		Palette:    pal,
		Assignment: best.labels,
		Inertia:    best.inertia,
		Iterations: best.iters,
	}, nil
}

// identityMapping handles buffers that already have at most k distinct
// colors: each distinct color becomes its own palette entry in
// first-appearance order and quantization is exact. Returns ok=false as
// soon as a (k+1)-th color shows up.
func identityMapping(buf *PixelBuffer, k int) (Palette, []int32, bool) {
	n := buf.W * buf.H
	stride := buf.C
	index := make(map[uint32]int32, k+1)
	pal := make(Palette, 0, k)
	labels := make([]int32, n)
	for i := 0; i < n; i++ {
		off := i * stride
		key := colorKey(buf.Pix[off], buf.Pix[off+1], buf.Pix[off+2])
		id, ok := index[key]
		if !ok {
			if len(pal) == k {
				return nil, nil, false
			}
			id = int32(len(pal))
			index[key] = id
			pal = append(pal, keyColor(key))
		}
		labels[i] = id
	}
	return pal, labels, true
}

// ============ SINGLE RESTART ============

type kmeansRun struct {
	buf     *PixelBuffer
	k       int
	maxIter int
	workers int
	rng     *rand.Rand

	centroids    []float64 // k*3 channel means
	labels       []int32   // one per pixel, -1 until first assigned
	sums         []uint64  // k*3 integer channel sums, reset per iteration
	counts       []uint64  // k member counts, reset per iteration
	chunkInertia []float64
	inertia      float64
	iters        int
	err          error
}

func newKmeansRun(buf *PixelBuffer, k, maxIter, workers int, seed int64) *kmeansRun {
	n := buf.W * buf.H
	r := &kmeansRun{
		buf:          buf,
		k:            k,
		maxIter:      maxIter,
		workers:      workers,
		rng:          rand.New(rand.NewSource(seed)),
		centroids:    make([]float64, k*3),
		labels:       make([]int32, n),
		sums:         make([]uint64, k*3),
		counts:       make([]uint64, k),
		chunkInertia: make([]float64, chunkCount(n)),
	}
	// Labels start at -1 so the first pass counts every pixel as moved
	// and convergence is never declared against the raw seed centroids.
	for i := range r.labels {
		r.labels[i] = -1
	}
	return r
}

func (r *kmeansRun) train(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		r.err = err
		return
	}
	r.seedCentroids()
	for iter := 1; iter <= r.maxIter; iter++ {
		changes := r.assign()
		r.recenter()
		r.iters = iter
		if changes == 0 {
			return
		}
		if err := ctx.Err(); err != nil {
			r.err = err
			return
		}
	}
}

// assign labels every pixel with its nearest centroid and accumulates
// the per-cluster channel sums for the recenter step. Workers claim
// fixed-size pixel chunks through an atomic cursor; integer channel sums
// merge order-independently and the float inertia partials are summed in
// chunk order, so the result is identical for any worker count. Ties go
// to the lowest cluster index. Returns the number of label changes.
func (r *kmeansRun) assign() int {
	n := r.buf.W * r.buf.H
	stride := r.buf.C
	k := r.k
	pix := r.buf.Pix
	cents := r.centroids
	chunks := chunkCount(n)

	clear(r.sums)
	clear(r.counts)

	var (
		cursor  atomic.Int64
		mu      sync.Mutex
		wg      sync.WaitGroup
		changes int
	)
	workers := min(r.workers, chunks)
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sums := make([]uint64, k*3)
			counts := make([]uint64, k)
			moved := 0
			for {
				ci := int(cursor.Add(1)) - 1
				if ci >= chunks {
					break
				}
				start := ci * chunkSize
				end := min(start+chunkSize, n)
				inertia := 0.0
				for i := start; i < end; i++ {
					off := i * stride
					pr := float64(pix[off])
					pg := float64(pix[off+1])
					pb := float64(pix[off+2])
					best := int32(0)
					bestD := math.MaxFloat64
					for c := 0; c < k; c++ {
						dr := pr - cents[c*3]
						dg := pg - cents[c*3+1]
						db := pb - cents[c*3+2]
						d := dr*dr + dg*dg + db*db
						if d < bestD {
							bestD = d
							best = int32(c)
						}
					}
					if r.labels[i] != best {
						r.labels[i] = best
						moved++
					}
					base := int(best) * 3
					sums[base] += uint64(pix[off])
					sums[base+1] += uint64(pix[off+1])
					sums[base+2] += uint64(pix[off+2])
					counts[best]++
					inertia += bestD
				}
				r.chunkInertia[ci] = inertia
			}
			mu.Lock()
			for i, v := range sums {
				r.sums[i] += v
			}
			for i, v := range counts {
				r.counts[i] += v
			}
			changes += moved
			mu.Unlock()
		}()
	}
	wg.Wait()

	total := 0.0
	for _, v := range r.chunkInertia {
		total += v
	}
	r.inertia = total
	return changes
}

// recenter replaces each centroid with the mean of its members. A
// cluster that lost all members keeps its previous centroid.
func (r *kmeansRun) recenter() {
	for c := 0; c < r.k; c++ {
		cnt := r.counts[c]
		if cnt == 0 {
			continue
		}
		r.centroids[c*3] = float64(r.sums[c*3]) / float64(cnt)
		r.centroids[c*3+1] = float64(r.sums[c*3+1]) / float64(cnt)
		r.centroids[c*3+2] = float64(r.sums[c*3+2]) / float64(cnt)
	}
}

// ============ K-MEANS++ SEEDING ============

// seedCentroids picks the initial centroids with distance-weighted
// sampling: the first is uniform, each next one is a pixel drawn with
// probability proportional to its squared distance from the centroids
// chosen so far. Runs sequentially on the restart's own source.
func (r *kmeansRun) seedCentroids() {
	n := r.buf.W * r.buf.H
	r.copyPixel(0, r.rng.Intn(n))

	d2 := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		d2[i] = r.pixelDist2(i, 0)
		total += d2[i]
	}
	for c := 1; c < r.k; c++ {
		idx := sampleByDistance(r.rng, d2, total)
		r.copyPixel(c, idx)
		for i := 0; i < n; i++ {
			if nd := r.pixelDist2(i, c); nd < d2[i] {
				total -= d2[i] - nd
				d2[i] = nd
			}
		}
	}
}

func (r *kmeansRun) copyPixel(c, i int) {
	off := i * r.buf.C
	r.centroids[c*3] = float64(r.buf.Pix[off])
	r.centroids[c*3+1] = float64(r.buf.Pix[off+1])
	r.centroids[c*3+2] = float64(r.buf.Pix[off+2])
}

func (r *kmeansRun) pixelDist2(i, c int) float64 {
	off := i * r.buf.C
	dr := float64(r.buf.Pix[off]) - r.centroids[c*3]
	dg := float64(r.buf.Pix[off+1]) - r.centroids[c*3+1]
	db := float64(r.buf.Pix[off+2]) - r.centroids[c*3+2]
	return dr*dr + dg*dg + db*db
}

// sampleByDistance draws an index with probability proportional to its
// entry in d2. Zero entries (already-chosen colors) are never drawn.
func sampleByDistance(rng *rand.Rand, d2 []float64, total float64) int {
	if total <= 0 {
		return rng.Intn(len(d2))
	}
	target := rng.Float64() * total
	acc := 0.0
	last := 0
	for i, d := range d2 {
		if d <= 0 {
			continue
		}
		acc += d
		last = i
		if acc >= target {
			return i
		}
	}
	return last
}
