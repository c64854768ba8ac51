// Package device wires the sensor node together: it boots the ring from the
// persisted sampling frequency and runs the producer, the data-plane sender
// and the control-plane receiver until a restart is requested.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/itohio/iaware/pkg/analog"
	"github.com/itohio/iaware/pkg/command"
	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/conn"
	"github.com/itohio/iaware/pkg/indicator"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/metrics"
	"github.com/itohio/iaware/pkg/netstate"
	"github.com/itohio/iaware/pkg/ring"
	"github.com/itohio/iaware/pkg/sampler"
	"github.com/itohio/iaware/pkg/state"
	"github.com/itohio/iaware/pkg/store"
	"github.com/itohio/iaware/pkg/stream"
)

// ErrRestart is returned by Run when the node must be booted again.
var ErrRestart = errors.New("device restart requested")

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithMetrics sets the metrics collector shared by all components.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Device) { d.metrics = m }
}

// WithIndicator sets the status indicator.
func WithIndicator(i indicator.Indicator) Option {
	return func(d *Device) { d.indicator = i }
}

// WithGate sets the network gate. Without one the network is always up.
func WithGate(g *netstate.Gate) Option {
	return func(d *Device) { d.gate = g }
}

// WithClock sets the producer clock.
func WithClock(c sampler.Clock) Option {
	return func(d *Device) { d.clock = c }
}

// Device is one boot of the sensor node.
type Device struct {
	cfg       *config.Config
	store     store.Store
	source    analog.Source
	log       *slog.Logger
	metrics   *metrics.Collector
	indicator indicator.Indicator
	gate      *netstate.Gate
	clock     sampler.Clock

	rt       *state.Runtime
	pool     *ring.Pool
	producer *sampler.Producer
	sender   *stream.Sender
	receiver *command.Receiver
	data     *conn.Supervisor
	control  *conn.Supervisor

	restartOnce sync.Once
	restart     chan string
}

// Boot reads the persisted sampling frequency, writes it back and allocates
// the ring. Streaming starts disabled. An allocation failure is returned
// wrapping ring.ErrAllocation; the node cannot run degraded.
func Boot(cfg *config.Config, st store.Store, src analog.Source, opts ...Option) (*Device, error) {
	d := &Device{
		cfg:     cfg,
		store:   st,
		source:  src,
		restart: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Component("device")
	}
	if d.indicator == nil {
		d.indicator = indicator.Nop{}
	}
	if d.gate == nil {
		d.gate = netstate.New(true)
	}

	hz := st.SamplingFrequency()
	if err := st.SetSamplingFrequency(hz); err != nil {
		d.log.Warn("failed to persist sampling frequency", "sampling_hz", hz, "error", err)
	}

	sc := cfg.Sampling
	d.rt = state.New(hz, sc.SendFrequency)

	depth, perSlot := ring.Size(hz, sc.SendFrequency, sc.MaxLatency)
	pool, err := ring.New(depth, perSlot, sc.Group, ring.WithMaxBytes(sc.MaxPoolBytes))
	if err != nil {
		return nil, fmt.Errorf("boot at %d Hz: %w", hz, err)
	}
	d.pool = pool
	d.metrics.PoolBuilt(hz, depth, perSlot)
	d.metrics.StreamEnabled(false)
	d.metrics.SendFrequency(sc.SendFrequency)

	d.log.Info("device booted",
		"sampling_hz", hz,
		"send_hz", float64(sc.SendFrequency)/10,
		"depth", depth,
		"samples_per_slot", perSlot,
		"pool_bytes", pool.Bytes())

	popts := []sampler.Option{
		sampler.WithLogger(d.log.With("component", "sampler")),
		sampler.WithMetrics(d.metrics),
	}
	if d.clock != nil {
		popts = append(popts, sampler.WithClock(d.clock))
	}
	d.producer = sampler.New(pool, src, d.rt, popts...)

	d.sender = stream.New(pool, d.rt,
		stream.WithYield(sc.Yield),
		stream.WithLogger(d.log.With("component", "stream")),
		stream.WithMetrics(d.metrics),
		stream.WithIndicator(d.indicator))

	d.receiver = command.New(d.rt, st, d,
		command.WithMaxPayload(sc.MaxPayloadSize),
		command.WithLogger(d.log.With("component", "command")),
		command.WithMetrics(d.metrics),
		command.WithIndicator(d.indicator))

	nc := cfg.Network
	d.data = conn.New(conn.Config{
		Role:      "data",
		Addr:      nc.DataAddr,
		Backoff:   nc.Backoff,
		Gate:      d.gate,
		Logger:    d.log.With("component", "conn"),
		Metrics:   d.metrics,
		Indicator: d.indicator,
	}, d.sender.Serve)
	d.control = conn.New(conn.Config{
		Role:      "control",
		Addr:      nc.ControlAddr,
		Backoff:   nc.Backoff,
		Gate:      d.gate,
		Logger:    d.log.With("component", "conn"),
		Metrics:   d.metrics,
		Indicator: d.indicator,
	}, d.receiver.Serve)

	return d, nil
}

// Runtime returns the shared runtime state.
func (d *Device) Runtime() *state.Runtime { return d.rt }

// Pool returns the ring.
func (d *Device) Pool() *ring.Pool { return d.pool }

// Data returns the data-plane supervisor.
func (d *Device) Data() *conn.Supervisor { return d.data }

// Control returns the control-plane supervisor.
func (d *Device) Control() *conn.Supervisor { return d.control }

// Restart asks Run to stop and return ErrRestart. Only the first request counts.
func (d *Device) Restart(reason string) {
	d.restartOnce.Do(func() {
		d.metrics.Restart(reason)
		d.restart <- reason
	})
}

// Run starts every task and blocks until ctx is done or a restart is
// requested. The tasks fail independently; none of their errors stops the
// others.
func (d *Device) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.Error("task stopped", "task", name, "error", err)
			}
		}()
	}

	run("sampler", d.producer.Run)
	run("data", d.data.Run)
	run("control", d.control.Run)

	if iface := d.cfg.Network.Interface; iface != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			netstate.Watch(ctx, d.gate, func() bool { return netstate.InterfaceUp(iface) },
				d.cfg.Network.PollPeriod, d.log.With("component", "netstate", "interface", iface))
		}()
	}

	if addr := d.cfg.Metrics.Addr; addr != "" && d.metrics != nil {
		run("metrics", func(ctx context.Context) error {
			d.log.Info("serving metrics", "addr", addr)
			return d.metrics.Serve(ctx, addr)
		})
	}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case reason := <-d.restart:
		d.log.Warn("restarting", "reason", reason)
		err = fmt.Errorf("%w: %s", ErrRestart, reason)
	}

	cancel()
	wg.Wait()
	return err
}
