package quant

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// chunkSize is the number of pixels a worker claims at a time. Chunk
// boundaries are fixed so per-chunk reductions never depend on the
// worker count.
const chunkSize = 4096

func chunkCount(n int) int {
	return (n + chunkSize - 1) / chunkSize
}

func workerCount(w int) int {
	if w <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return w
}

// parallelChunks runs fn over [0,n) in fixed-size chunks. Workers claim
// chunks through an atomic cursor; fn receives the pixel range and the
// chunk index. workers <= 0 uses all CPUs.
func parallelChunks(n, workers int, fn func(start, end, chunk int)) {
	if n <= 0 {
		return
	}
	chunks := chunkCount(n)
	workers = min(workerCount(workers), chunks)
	if workers == 1 {
		for c := 0; c < chunks; c++ {
			start := c * chunkSize
			fn(start, min(start+chunkSize, n), c)
		}
		return
	}

	var cursor atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c := int(cursor.Add(1)) - 1
				if c >= chunks {
					return
				}
				start := c * chunkSize
				fn(start, min(start+chunkSize, n), c)
			}
		}()
	}
	wg.Wait()
}
