// Package state holds the runtime scalars shared between the command
// receiver (single writer) and the producer and sender (readers).
//
// Each field is independent; no cross-field consistency is provided.
package state

import (
	"sync/atomic"
	"time"
)

// Runtime is the shared runtime state handle.
type Runtime struct {
	streamEnabled atomic.Bool
	samplingHz    atomic.Uint32
	sendDeciHz    atomic.Uint32
}

// New returns runtime state with streaming disabled.
func New(samplingHz, sendDeciHz uint32) *Runtime {
	r := &Runtime{}
	r.samplingHz.Store(samplingHz)
	r.sendDeciHz.Store(sendDeciHz)
	return r
}

// StreamEnabled reports whether the sender should write frames.
func (r *Runtime) StreamEnabled() bool { return r.streamEnabled.Load() }

// SetStreamEnabled sets the stream flag and reports the previous value.
func (r *Runtime) SetStreamEnabled(v bool) bool { return r.streamEnabled.Swap(v) }

// SamplingFrequency returns the sampling frequency in Hz the pool was built for.
func (r *Runtime) SamplingFrequency() uint32 { return r.samplingHz.Load() }

// SetSamplingFrequency records the sampling frequency in Hz.
func (r *Runtime) SetSamplingFrequency(hz uint32) { r.samplingHz.Store(hz) }

// SendFrequency returns the pacing target in 0.1 Hz units.
func (r *Runtime) SendFrequency() uint32 { return r.sendDeciHz.Load() }

// SetSendFrequency sets the pacing target in 0.1 Hz units.
func (r *Runtime) SetSendFrequency(deciHz uint32) { r.sendDeciHz.Store(deciHz) }

// SendInterval returns the period matching the send frequency, or zero when
// the frequency is unset.
func (r *Runtime) SendInterval() time.Duration {
	d := r.sendDeciHz.Load()
	if d == 0 {
		return 0
	}
	return 10 * time.Second / time.Duration(d)
}

// TickInterval returns the sampling period, or zero when the frequency is unset.
func (r *Runtime) TickInterval() time.Duration {
	hz := r.samplingHz.Load()
	if hz == 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
