// Package sampler runs the periodic sample producer that fills the ring.
package sampler

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/itohio/iaware/pkg/analog"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/metrics"
	"github.com/itohio/iaware/pkg/ring"
	"github.com/itohio/iaware/pkg/state"
)

// Clock returns a monotonic timestamp in microseconds.
type Clock interface {
	Micros() int64
}

type monotonic struct {
	origin time.Time
}

// SystemClock returns a Clock backed by the monotonic wall clock.
func SystemClock() Clock {
	return monotonic{origin: time.Now()}
}

func (m monotonic) Micros() int64 { return time.Since(m.origin).Microseconds() }

// EffectiveFrequency returns floor((written-2)*500000/elapsedMicros). written
// is the slot's byte offset, two bytes per sample, hence half of a million.
// A non-positive elapsed time or fewer than two bytes yields 0.
func EffectiveFrequency(written uint32, elapsedMicros int64) uint32 {
	if elapsedMicros <= 0 || written < 2 {
		return 0
	}
	return uint32(uint64(written-2) * 500000 / uint64(elapsedMicros))
}

// Producer appends one sample per tick into the active slot.
type Producer struct {
	pool    *ring.Pool
	source  analog.Source
	clock   Clock
	rt      *state.Runtime
	log     *slog.Logger
	metrics *metrics.Collector
	warn    *rate.Limiter
	seq     uint64
}

// Option configures a Producer.
type Option func(*Producer)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(p *Producer) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Producer) { p.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(p *Producer) { p.metrics = m }
}

// New creates a producer filling pool from source at the sampling frequency
// held in rt.
func New(pool *ring.Pool, source analog.Source, rt *state.Runtime, opts ...Option) *Producer {
	p := &Producer{
		pool:   pool,
		source: source,
		rt:     rt,
		warn:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = SystemClock()
	}
	if p.log == nil {
		p.log = logger.Component("sampler")
	}
	return p
}

// Filled returns the number of slots sealed so far.
func (p *Producer) Filled() uint64 { return p.seq }

// Tick captures one sample. When the active slot fills up it is sealed with
// its effective frequency, handed to the sender and the write cursor moves on.
// A tick that runs longer than the sampling period is reported, never retried.
func (p *Producer) Tick() {
	pre := p.clock.Micros()

	slot := p.pool.Active()
	if slot.Empty() {
		slot.SetStart(pre)
	}

	if slot.Append(p.source.ReadSample()) {
		eff := EffectiveFrequency(uint32(slot.Offset()), pre-slot.Start())
		slot.Seal(eff, p.seq)
		p.seq++
		overwrote := p.pool.Advance()
		p.metrics.SlotFilled(eff, overwrote)
		if overwrote && p.warn.Allow() {
			p.log.Warn("slot overwritten before it was sent", "cursor", p.pool.WriteCursor())
		}
	}

	hz := p.rt.SamplingFrequency()
	if hz == 0 {
		return
	}
	budget := int64(1000000 / hz)
	if over := p.clock.Micros() - pre - budget; over > 0 {
		p.metrics.TickOverrun()
		if p.warn.Allow() {
			p.log.Warn("sampling frequency too high", "overrun_us", over, "sampling_hz", hz)
		}
	}
}

// Run ticks at the sampling frequency until ctx is done. It pins itself to
// an OS thread so network goroutines are scheduled elsewhere.
func (p *Producer) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	interval := p.rt.TickInterval()
	if interval <= 0 {
		interval = time.Second / time.Duration(20000)
	}

	p.log.Info("sampling started",
		"sampling_hz", p.rt.SamplingFrequency(),
		"depth", p.pool.Depth(),
		"samples_per_slot", p.pool.SamplesPerSlot())

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("sampling stopped", "slots_filled", p.seq)
			return ctx.Err()
		default:
		}

		p.Tick()

		next = next.Add(interval)
		d := time.Until(next)
		switch {
		case d > 0:
			time.Sleep(d)
		case d < -100*interval:
			// too far behind to catch up; drop the backlog of deadlines
			next = time.Now()
		}
	}
}
