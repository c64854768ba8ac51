// Package monitor keeps a sliding time window of received samples and
// summarizes it for display.
package monitor

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/sample"
)

// DefaultUpdateInterval is the minimum spacing, in sample time, between
// update callbacks.
const DefaultUpdateInterval = 50 * time.Millisecond

// Stats summarizes the samples of one window.
type Stats struct {
	Count     int
	Mean      float64 // V
	StdDev    float64 // V
	Min       float64 // V
	Max       float64 // V
	Median    float64 // V
	Frequency float64 // mean effective sampling frequency, Hz
	Span      time.Duration
}

// UpdateFunc receives a copy of the window and its statistics.
type UpdateFunc func(samples []sample.Sample, stats Stats)

// Monitor maintains the sample window. Samples are ordered oldest first and
// removed by timestamp, not by count.
type Monitor struct {
	mu       sync.RWMutex
	samples  []sample.Sample
	window   time.Duration
	interval time.Duration
	lastNote time.Time
	shutdown bool

	cbMu      sync.RWMutex
	callbacks []UpdateFunc
}

// New creates a monitor using the configured window length.
func New(cfg *config.MonitorConfig) *Monitor {
	window := time.Duration(cfg.WindowSeconds * float64(time.Second))
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Monitor{
		window:   window,
		interval: DefaultUpdateInterval,
	}
}

// SetUpdateInterval sets the minimum sample-time spacing between callbacks.
// Zero notifies on every sample.
func (m *Monitor) SetUpdateInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

// ProcessSamples consumes input until it closes. No callback is invoked
// after it returns.
func (m *Monitor) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.Add(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// Add appends one sample and notifies callbacks when due.
func (m *Monitor) Add(s sample.Sample) {
	m.mu.Lock()
	m.samples = append(m.samples, s)

	cutoff := s.Timestamp.Add(-m.window)
	drop := sort.Search(len(m.samples), func(i int) bool {
		return m.samples[i].Timestamp.After(cutoff)
	})
	if drop > 0 {
		m.samples = append(m.samples[:0], m.samples[drop:]...)
	}

	notify := !m.shutdown && (m.interval <= 0 || s.Timestamp.Sub(m.lastNote) >= m.interval)
	if notify {
		m.lastNote = s.Timestamp
	}
	m.mu.Unlock()

	if notify {
		m.notifyCallbacks()
	}
}

// Samples returns a copy of the window.
func (m *Monitor) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sample.Sample(nil), m.samples...)
}

// Stats computes statistics over the current window.
func (m *Monitor) Stats() Stats {
	return Compute(m.Samples())
}

// Reset clears the window and re-enables callbacks for a new chain.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
	m.lastNote = time.Time{}
	m.shutdown = false
}

// OnUpdate registers a callback. Callbacks run on the processing goroutine
// and should return quickly.
func (m *Monitor) OnUpdate(cb UpdateFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *Monitor) notifyCallbacks() {
	samples := m.Samples()
	stats := Compute(samples)

	m.cbMu.RLock()
	callbacks := append([]UpdateFunc(nil), m.callbacks...)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, stats)
		}
	}
}

// Compute summarizes samples.
func Compute(samples []sample.Sample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}

	values := sample.Values(make([]float64, 0, len(samples)), samples)
	freqs := make([]float64, len(samples))
	for i, s := range samples {
		freqs[i] = float64(s.Frequency)
	}

	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return Stats{
		Count:     len(samples),
		Mean:      mean,
		StdDev:    std,
		Min:       floats.Min(values),
		Max:       floats.Max(values),
		Median:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Frequency: stat.Mean(freqs, nil),
		Span:      samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp),
	}
}
