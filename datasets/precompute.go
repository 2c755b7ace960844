package datasets

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// parallelFor runs fn(i) for every i in [0, n) on a small worker pool. Each
// call must only write state owned by index i. Progress is logged every
// interval under tag. The first error reported by a worker is returned.
func parallelFor(n, workers int, interval time.Duration, logger *log.Logger, tag string, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}

	jobs := make(chan int, n)
	errCh := make(chan error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	var done int64

	ticker := time.NewTicker(interval)
	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d := atomic.LoadInt64(&done)
				percent := (float64(d) / float64(n)) * 100.0
				logger.Printf("[%s] progress: %d/%d (%.1f%%)", tag, d, n, percent)
			case <-stopProgress:
				d := atomic.LoadInt64(&done)
				logger.Printf("[%s] completed: %d/%d", tag, d, n)
				return
			}
		}
	}()

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(i); err != nil {
					errCh <- fmt.Errorf("%s %d: %w", tag, i, err)
					return
				}
				atomic.AddInt64(&done, 1)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(stopProgress)
	<-progressDone
	close(errCh)

	select {
	case e := <-errCh:
		return e
	default:
	}
	return nil
}
