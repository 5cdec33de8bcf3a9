package gbdt

import (
	"runtime"
	"sync"
)

// forEach calls body(i) for i in [0, n) with at most limit goroutines.
func forEach(n, limit int, body func(i int)) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	if n <= 0 {
		return
	}
	if limit == 1 || n == 1 {
		for i := 0; i < n; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			body(i)
		}()
	}
	wg.Wait()
}
