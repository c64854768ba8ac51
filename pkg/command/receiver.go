// Package command serves the control plane: it reassembles command frames
// from the control connection and applies them to the node's runtime state.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/itohio/iaware/pkg/conn"
	"github.com/itohio/iaware/pkg/indicator"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/metrics"
	"github.com/itohio/iaware/pkg/protocol"
	"github.com/itohio/iaware/pkg/state"
	"github.com/itohio/iaware/pkg/store"
)

const readChunk = 256

// Result reports how a configuration change was applied.
type Result int

const (
	// AppliedImmediately means the running node already uses the new value.
	AppliedImmediately Result = iota
	// RequiresRestart means the value was stored and takes effect after a restart.
	RequiresRestart
	// Rejected means the value was not accepted.
	Rejected
)

func (r Result) String() string {
	switch r {
	case AppliedImmediately:
		return "applied_immediately"
	case RequiresRestart:
		return "requires_restart"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Restarter tears the node down and boots it again.
type Restarter interface {
	Restart(reason string)
}

// RestartFunc adapts a function to Restarter.
type RestartFunc func(reason string)

func (f RestartFunc) Restart(reason string) { f(reason) }

// Receiver handles one control connection at a time.
type Receiver struct {
	rt         *state.Runtime
	store      store.Store
	restarter  Restarter
	maxPayload uint32
	log        *slog.Logger
	metrics    *metrics.Collector
	indicator  indicator.Indicator
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithMaxPayload bounds a single command payload.
func WithMaxPayload(n uint32) Option {
	return func(r *Receiver) { r.maxPayload = n }
}

// WithLogger sets the fallback logger used outside a connection.
func WithLogger(l *slog.Logger) Option {
	return func(r *Receiver) { r.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Receiver) { r.metrics = m }
}

// WithIndicator sets the status indicator.
func WithIndicator(i indicator.Indicator) Option {
	return func(r *Receiver) { r.indicator = i }
}

// New creates a receiver writing to rt and persisting through st.
func New(rt *state.Runtime, st store.Store, restarter Restarter, opts ...Option) *Receiver {
	r := &Receiver{
		rt:         rt,
		store:      st,
		restarter:  restarter,
		maxPayload: protocol.DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Component("command")
	}
	if r.indicator == nil {
		r.indicator = indicator.Nop{}
	}
	return r
}

// Serve implements conn.ServeFunc. It returns io.EOF when the client closes
// the connection and a protocol error when a frame cannot be handled; both
// cost only the client.
func (r *Receiver) Serve(ctx context.Context, c net.Conn) error {
	log := conn.LoggerFrom(ctx, r.log)
	parser := protocol.NewParser(r.maxPayload)
	buf := make([]byte, readChunk)

	handle := func(payload []byte) error {
		return r.dispatch(log, payload)
	}

	for {
		n, err := c.Read(buf)
		if n > 0 {
			if ferr := parser.Feed(buf[:n], handle); ferr != nil {
				r.metrics.ProtocolError(errorKind(ferr))
				return ferr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if parser.State() != protocol.AwaitingLength {
				log.Debug("connection closed mid-frame", "parser_state", parser.State())
			}
			return err
		}
	}
}

// Dispatch applies a single command payload. Discardable frames are logged
// and yield nil.
func (r *Receiver) Dispatch(payload []byte) error {
	return r.dispatch(r.log, payload)
}

func (r *Receiver) dispatch(log *slog.Logger, payload []byte) error {
	cmd, err := protocol.DecodeCommand(payload)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrEmptyFrame),
		errors.Is(err, protocol.ErrUnknownHeader),
		errors.Is(err, protocol.ErrUnknownOpcode):
		r.metrics.ProtocolError(errorKind(err))
		log.Warn("discarding control frame", "error", err, "size", len(payload))
		return nil
	default:
		return err
	}

	r.metrics.Command(cmd.Opcode.String())
	log.Debug("command received", "opcode", cmd.Opcode)

	switch cmd.Opcode {
	case protocol.OpStartStream:
		r.setStream(log, true)

	case protocol.OpStopStream:
		r.setStream(log, false)

	case protocol.OpSetSamplingFrequency:
		hz := cmd.Frequency()
		if res := r.ApplySamplingFrequency(hz); res == RequiresRestart {
			log.Info("restarting to apply sampling frequency", "sampling_hz", hz)
			r.restarter.Restart("sampling_frequency")
		}

	case protocol.OpSetSendFrequency:
		r.ApplySendFrequency(uint32(cmd.DeciHz()))

	case protocol.OpFirmwareUpload:
		log.Warn("firmware upload is not supported", "size", len(cmd.Argument))
	}
	return nil
}

func (r *Receiver) setStream(log *slog.Logger, on bool) {
	prev := r.rt.SetStreamEnabled(on)
	r.metrics.StreamEnabled(on)
	if prev != on {
		r.indicator.StreamActive(on)
		log.Info("streaming toggled", "enabled", on)
	}
}

// ApplySamplingFrequency persists hz for the next boot. The pool is sized
// from the sampling frequency, so an accepted value always requires a
// restart. A failure to persist is logged and the restart still happens.
func (r *Receiver) ApplySamplingFrequency(hz uint32) Result {
	if hz == 0 {
		r.log.Warn("rejecting sampling frequency", "sampling_hz", hz)
		return Rejected
	}
	if err := r.store.SetSamplingFrequency(hz); err != nil {
		r.log.Error("failed to persist sampling frequency", "sampling_hz", hz, "error", err)
	}
	return RequiresRestart
}

// ApplySendFrequency changes the pacing target, in 0.1 Hz units, of the
// running sender.
func (r *Receiver) ApplySendFrequency(deciHz uint32) Result {
	if deciHz == 0 {
		r.log.Warn("rejecting send frequency", "deci_hz", deciHz)
		return Rejected
	}
	r.rt.SetSendFrequency(deciHz)
	r.metrics.SendFrequency(deciHz)
	r.log.Info("send frequency changed", "hz", float64(deciHz)/10)
	return AppliedImmediately
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, protocol.ErrMalformed):
		return "malformed"
	case errors.Is(err, protocol.ErrEmptyFrame):
		return "empty"
	case errors.Is(err, protocol.ErrUnknownHeader):
		return "unknown_header"
	case errors.Is(err, protocol.ErrUnknownOpcode):
		return "unknown_opcode"
	default:
		return "other"
	}
}
