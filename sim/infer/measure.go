package infer

import (
	"runtime"
	"time"
)

// defaultHeapSampleInterval is how often the resource scope polls the
// allocator while a fit runs.
const defaultHeapSampleInterval = 5 * time.Millisecond

// resourceScope measures what happens between begin and Finish: wall
// time directly, peak heap by polling ReadMemStats from a goroutine.
// Polling misses short allocation spikes between samples; the reported
// peak is a floor, which is the useful direction for budget reports.
type resourceScope struct {
	start   time.Time
	stop    chan struct{}
	done    chan struct{}
	peak    uint64
	samples int
}

func beginResourceScope(interval time.Duration) *resourceScope {
	s := &resourceScope{
		start: time.Now(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sample()
			}
		}
	}()
	return s
}

// sample runs only on the scope goroutine until Finish has joined it.
func (s *resourceScope) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc > s.peak {
		s.peak = ms.HeapAlloc
	}
	s.samples++
}

// Finish stops sampling and returns the measurements. It takes one
// final sample after the goroutine has exited so a fit shorter than
// the polling interval still reports a peak.
func (s *resourceScope) Finish() Resources {
	close(s.stop)
	<-s.done
	s.sample()
	return Resources{
		WallTime:      time.Since(s.start),
		PeakHeapBytes: s.peak,
		HeapSamples:   s.samples,
	}
}
