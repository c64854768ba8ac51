// Package metrics provides Prometheus metrics for the sensor node.
//
// All methods are safe on a nil *Collector, so components can run without
// metrics wired in.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector manages all Prometheus metrics for the node.
type Collector struct {
	registry *prometheus.Registry

	// Producer
	slotsFilled     prometheus.Counter
	slotsOverwrote  prometheus.Counter
	tickOverruns    prometheus.Counter
	effectiveFreq   prometheus.Gauge
	samplingFreq    prometheus.Gauge
	poolDepth       prometheus.Gauge
	samplesPerSlot  prometheus.Gauge
	streamEnabled   prometheus.Gauge
	sendFreq        prometheus.Gauge
	restarts        *prometheus.CounterVec
	// Sender
	framesSent      prometheus.Counter
	framesSkipped   prometheus.Counter
	bytesSent       prometheus.Counter
	senderOverruns  prometheus.Counter
	sendLatency     prometheus.Histogram
	// Connections and commands
	connState       *prometheus.GaugeVec
	connTransitions *prometheus.CounterVec
	commands        *prometheus.CounterVec
	protocolErrors  *prometheus.CounterVec
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	c := &Collector{registry: reg}

	c.slotsFilled = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_slots_filled_total",
		Help: "Slots filled and handed to the sender",
	})
	c.slotsOverwrote = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_slots_overwritten_total",
		Help: "Slots reused by the producer before they were sent",
	})
	c.tickOverruns = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_tick_overruns_total",
		Help: "Producer ticks that exceeded the sampling period",
	})
	c.effectiveFreq = f.NewGauge(prometheus.GaugeOpts{
		Name: "iaware_effective_frequency_hz",
		Help: "Effective sampling frequency of the last filled slot",
	})
	c.samplingFreq = f.NewGauge(prometheus.GaugeOpts{
		Name: "iaware_sampling_frequency_hz",
		Help: "Configured sampling frequency",
	})
	c.poolDepth = f.NewGauge(prometheus.GaugeOpts{
		Name: "iaware_pool_depth",
		Help: "Number of slots in the ring",
	})
	c.samplesPerSlot = f.NewGauge(prometheus.GaugeOpts{
		Name: "iaware_pool_samples_per_slot",
		Help: "Samples held by one slot",
	})
	c.streamEnabled = f.NewGauge(prometheus.GaugeOpts{
		Name: "iaware_stream_enabled",
		Help: "1 when streaming is enabled",
	})
	c.sendFreq = f.NewGauge(prometheus.GaugeOpts{
		Name: "iaware_send_frequency_hz",
		Help: "Sender pacing target",
	})
	c.restarts = f.NewCounterVec(prometheus.CounterOpts{
		Name: "iaware_restarts_total",
		Help: "Device restarts by reason",
	}, []string{"reason"})

	c.framesSent = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_frames_sent_total",
		Help: "Data frames written to the client",
	})
	c.framesSkipped = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_frames_skipped_total",
		Help: "Ready slots released without a write because streaming was disabled",
	})
	c.bytesSent = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_bytes_sent_total",
		Help: "Data-plane bytes written",
	})
	c.senderOverruns = f.NewCounter(prometheus.CounterOpts{
		Name: "iaware_sender_overruns_total",
		Help: "Sender iterations that exceeded the send period",
	})
	c.sendLatency = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "iaware_send_duration_seconds",
		Help:    "Time spent writing one frame",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	})

	c.connState = f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iaware_connection_state",
		Help: "Current supervisor state per role (state label is 1 for the active state)",
	}, []string{"role", "state"})
	c.connTransitions = f.NewCounterVec(prometheus.CounterOpts{
		Name: "iaware_connection_transitions_total",
		Help: "Supervisor state transitions per role and target state",
	}, []string{"role", "state"})
	c.commands = f.NewCounterVec(prometheus.CounterOpts{
		Name: "iaware_commands_total",
		Help: "Commands received by opcode",
	}, []string{"opcode"})
	c.protocolErrors = f.NewCounterVec(prometheus.CounterOpts{
		Name: "iaware_protocol_errors_total",
		Help: "Control-plane protocol errors by kind",
	}, []string{"kind"})

	return c
}

// Registry returns the backing registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PoolBuilt records the ring geometry of a boot.
func (c *Collector) PoolBuilt(samplingHz uint32, depth, samplesPerSlot int) {
	if c == nil {
		return
	}
	c.samplingFreq.Set(float64(samplingHz))
	c.poolDepth.Set(float64(depth))
	c.samplesPerSlot.Set(float64(samplesPerSlot))
}

// SlotFilled records a sealed slot and its effective frequency.
func (c *Collector) SlotFilled(effectiveHz uint32, overwrote bool) {
	if c == nil {
		return
	}
	c.slotsFilled.Inc()
	c.effectiveFreq.Set(float64(effectiveHz))
	if overwrote {
		c.slotsOverwrote.Inc()
	}
}

// TickOverrun records a producer tick over budget.
func (c *Collector) TickOverrun() {
	if c == nil {
		return
	}
	c.tickOverruns.Inc()
}

// FrameSent records one data frame written.
func (c *Collector) FrameSent(n int, d time.Duration) {
	if c == nil {
		return
	}
	c.framesSent.Inc()
	c.bytesSent.Add(float64(n))
	c.sendLatency.Observe(d.Seconds())
}

// FrameSkipped records a ready slot released while streaming was disabled.
func (c *Collector) FrameSkipped() {
	if c == nil {
		return
	}
	c.framesSkipped.Inc()
}

// SenderOverrun records a sender iteration over the send period.
func (c *Collector) SenderOverrun() {
	if c == nil {
		return
	}
	c.senderOverruns.Inc()
}

// StreamEnabled records the stream flag.
func (c *Collector) StreamEnabled(v bool) {
	if c == nil {
		return
	}
	if v {
		c.streamEnabled.Set(1)
	} else {
		c.streamEnabled.Set(0)
	}
}

// SendFrequency records the pacing target in 0.1 Hz units.
func (c *Collector) SendFrequency(deciHz uint32) {
	if c == nil {
		return
	}
	c.sendFreq.Set(float64(deciHz) / 10)
}

// Command records a received opcode.
func (c *Collector) Command(opcode string) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(opcode).Inc()
}

// ProtocolError records a discarded or fatal control frame.
func (c *Collector) ProtocolError(kind string) {
	if c == nil {
		return
	}
	c.protocolErrors.WithLabelValues(kind).Inc()
}

// ConnectionState records a supervisor transition from one state to another.
func (c *Collector) ConnectionState(role, from, to string) {
	if c == nil {
		return
	}
	if from != "" {
		c.connState.WithLabelValues(role, from).Set(0)
	}
	c.connState.WithLabelValues(role, to).Set(1)
	c.connTransitions.WithLabelValues(role, to).Inc()
}

// Restart records a device restart.
func (c *Collector) Restart(reason string) {
	if c == nil {
		return
	}
	c.restarts.WithLabelValues(reason).Inc()
}
