package mesher

import (
	"runtime"
	"sync"
)

// parallelFor runs fn over contiguous index spans covering [0,n) on up
// to workers goroutines. workers <= 0 uses GOMAXPROCS. The call returns
// once every span has completed, making it the synchronization barrier
// between a parallel stage and its consumer.
func parallelFor(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}
	span := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += span {
		end := start + span
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
