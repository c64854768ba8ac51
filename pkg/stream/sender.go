// Package stream drains filled ring slots onto the data-plane connection.
package stream

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/itohio/iaware/pkg/conn"
	"github.com/itohio/iaware/pkg/indicator"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/metrics"
	"github.com/itohio/iaware/pkg/ring"
	"github.com/itohio/iaware/pkg/state"
)

// DefaultYield is the pause between sender iterations.
const DefaultYield = time.Millisecond

// Sender is the single consumer of a ring.
type Sender struct {
	pool      *ring.Pool
	rt        *state.Runtime
	yield     time.Duration
	log       *slog.Logger
	metrics   *metrics.Collector
	indicator indicator.Indicator
	warn      *rate.Limiter

	cursor atomic.Int64
	sent   atomic.Uint64
}

// Option configures a Sender.
type Option func(*Sender)

// WithYield sets the pause between iterations.
func WithYield(d time.Duration) Option {
	return func(s *Sender) { s.yield = d }
}

// WithLogger sets the fallback logger used outside a connection.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) { s.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Sender) { s.metrics = m }
}

// WithIndicator sets the status indicator.
func WithIndicator(i indicator.Indicator) Option {
	return func(s *Sender) { s.indicator = i }
}

// New creates a sender draining pool.
func New(pool *ring.Pool, rt *state.Runtime, opts ...Option) *Sender {
	s := &Sender{
		pool:  pool,
		rt:    rt,
		yield: DefaultYield,
		warn:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Component("stream")
	}
	if s.indicator == nil {
		s.indicator = indicator.Nop{}
	}
	return s
}

// Cursor returns the index of the slot the sender waits on.
func (s *Sender) Cursor() int { return int(s.cursor.Load()) }

// Sent returns the number of frames written.
func (s *Sender) Sent() uint64 { return s.sent.Load() }

// Serve implements conn.ServeFunc.
func (s *Sender) Serve(ctx context.Context, c net.Conn) error {
	return s.Stream(ctx, c)
}

// Stream sends ready slots to w in fill order until ctx is done or a write
// fails. It starts at the slot the producer currently targets, so frames
// filled before the client connected are not replayed.
//
// A ready slot is released before it is written. While streaming is disabled
// ready slots are released and skipped.
func (s *Sender) Stream(ctx context.Context, w io.Writer) error {
	log := conn.LoggerFrom(ctx, s.log)

	cursor := s.pool.WriteCursor()
	s.cursor.Store(int64(cursor))

	enabled := s.rt.StreamEnabled()
	s.indicator.StreamActive(enabled)
	defer s.indicator.StreamActive(false)

	log.Info("streaming to client", "start_slot", cursor, "enabled", enabled)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		begin := time.Now()

		slot := s.pool.Slot(cursor)
		if slot.Release() {
			on := s.rt.StreamEnabled()
			if on != enabled {
				enabled = on
				s.indicator.StreamActive(on)
			}

			if on {
				frame := slot.Frame()
				if err := writeAll(w, frame); err != nil {
					return err
				}
				s.sent.Add(1)
				s.metrics.FrameSent(len(frame), time.Since(begin))
			} else {
				s.metrics.FrameSkipped()
			}

			cursor = s.pool.Next(cursor)
			s.cursor.Store(int64(cursor))
		}

		if s.yield > 0 {
			time.Sleep(s.yield)
		}

		if budget := s.rt.SendInterval(); budget > 0 {
			if elapsed := time.Since(begin); elapsed > budget {
				s.metrics.SenderOverrun()
				if s.warn.Allow() {
					log.Warn("send iteration exceeded send period", "elapsed", elapsed, "period", budget)
				}
			}
		}
	}
}

// writeAll writes b completely, retrying short writes.
func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}
