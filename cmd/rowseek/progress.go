package main

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how many sources of a batch have loaded.
type ProgressTracker struct {
	writer    io.Writer
	current   int
	total     int
	startTime time.Time
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker writing to writer (typically os.Stderr).
func NewProgressTracker(writer io.Writer) *ProgressTracker {
	return &ProgressTracker{writer: writer, startTime: time.Now()}
}

// Observe records progress; it matches loader.ProgressFunc.
func (p *ProgressTracker) Observe(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if done > total {
		done = total
	}
	p.current, p.total = done, total
	p.report()
}

// Finish prints the final line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rLoading sources: %d/%d (%.1f%%) - %s",
		p.current, p.total, percentage, time.Since(p.startTime).Round(time.Millisecond))
}
