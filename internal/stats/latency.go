// Package stats collects connection quality measurements.
package stats

import (
	"sync"
	"time"
)

const latencyWindow = 20

// Latency keeps the most recent round-trip samples.
type Latency struct {
	mu      sync.Mutex
	samples [latencyWindow]time.Duration
	count   int
	next    int
}

// NewLatency creates an empty collector.
func NewLatency() *Latency {
	return &Latency{}
}

// RecordLatency stores one round-trip sample.
func (l *Latency) RecordLatency(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples[l.next] = d
	l.next = (l.next + 1) % latencyWindow
	if l.count < latencyWindow {
		l.count++
	}
}

// Last returns the newest sample, or 0 if none were recorded.
func (l *Latency) Last() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return 0
	}
	return l.samples[(l.next+latencyWindow-1)%latencyWindow]
}

// Average returns the mean of the retained samples.
func (l *Latency) Average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < l.count; i++ {
		total += l.samples[i]
	}
	return total / time.Duration(l.count)
}

// Reset drops all samples.
func (l *Latency) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count = 0
	l.next = 0
}
