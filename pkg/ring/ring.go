// Package ring implements the fixed-depth slot ring shared by the sample
// producer and the stream sender.
//
// The ring has exactly one producer and one consumer. A slot's readiness flag
// is the only handoff between them: not-ready slots belong to the producer,
// ready slots belong to the consumer. There is no lock. The ring must be deep
// enough that the producer never laps a slot the consumer is still sending;
// when it does, the slot is overwritten (see Advance).
package ring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/itohio/iaware/pkg/protocol"
)

// ErrAllocation is returned when a pool cannot be sized or allocated.
var ErrAllocation = errors.New("ring: pool allocation failed")

// MinDepth is the smallest pool depth accepted by New.
const MinDepth = 2

// Slot is one fixed-capacity frame buffer. The frame is laid out exactly as
// it goes on the wire, so the sender writes it without copying.
type Slot struct {
	frame  []byte // length | group | frequency | samples
	offset int    // bytes written into the sample area
	start  int64  // microseconds, latched on the first sample
	ready  atomic.Bool
	seq    uint64
}

// Append stores one sample big-endian at the write offset and reports whether
// the slot is now full. Producer only.
func (s *Slot) Append(sample uint16) bool {
	binary.BigEndian.PutUint16(s.frame[protocol.DataHeaderSize+s.offset:], sample)
	s.offset += protocol.SampleSize
	return s.offset == len(s.frame)-protocol.DataHeaderSize
}

// Empty reports whether no sample has been written since the last reset.
func (s *Slot) Empty() bool { return s.offset == 0 }

// Offset returns the number of sample bytes written.
func (s *Slot) Offset() int { return s.offset }

// Capacity returns the sample capacity of the slot.
func (s *Slot) Capacity() int { return (len(s.frame) - protocol.DataHeaderSize) / protocol.SampleSize }

// SetStart latches the fill start timestamp in microseconds.
func (s *Slot) SetStart(micros int64) { s.start = micros }

// Start returns the fill start timestamp in microseconds.
func (s *Slot) Start() int64 { return s.start }

// Seal records the effective frequency and hands the slot to the consumer.
func (s *Slot) Seal(effectiveHz uint32, seq uint64) {
	binary.BigEndian.PutUint32(s.frame[protocol.LengthFieldSize+protocol.GroupFieldSize:], effectiveHz)
	s.seq = seq
	s.ready.Store(true)
}

// Ready reports whether the slot is full and pending transmission.
func (s *Slot) Ready() bool { return s.ready.Load() }

// Release returns the slot to the producer. It reports false if the slot was
// not ready.
func (s *Slot) Release() bool { return s.ready.CompareAndSwap(true, false) }

// Frame returns the wire frame backed by the slot. The returned slice aliases
// slot storage and is only stable while the producer is elsewhere in the ring.
func (s *Slot) Frame() []byte { return s.frame }

// EffectiveFrequency returns the value stored by the last Seal.
func (s *Slot) EffectiveFrequency() uint32 {
	return binary.BigEndian.Uint32(s.frame[protocol.LengthFieldSize+protocol.GroupFieldSize:])
}

// Seq returns the fill sequence number stored by the last Seal.
func (s *Slot) Seq() uint64 { return s.seq }

func (s *Slot) reset() {
	s.offset = 0
}

// Pool is an owned, fixed array of slots with modulo cursors.
type Pool struct {
	slots          []Slot
	samplesPerSlot int
	group          byte
	write          atomic.Int64
}

// Option configures a pool.
type Option func(*options)

type options struct {
	maxBytes int
}

// WithMaxBytes bounds the total frame storage of the pool. Larger requests fail
// with ErrAllocation.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// New preallocates depth slots of samplesPerSlot samples each. Any failure
// returns ErrAllocation and no partial pool.
func New(depth, samplesPerSlot int, group byte, opts ...Option) (p *Pool, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if depth < MinDepth {
		return nil, fmt.Errorf("%w: depth %d < %d", ErrAllocation, depth, MinDepth)
	}
	if samplesPerSlot < 1 {
		return nil, fmt.Errorf("%w: %d samples per slot", ErrAllocation, samplesPerSlot)
	}

	frameSize := protocol.DataFrameSize(samplesPerSlot)
	total := int64(frameSize) * int64(depth)
	if o.maxBytes > 0 && total > int64(o.maxBytes) {
		return nil, fmt.Errorf("%w: %d bytes requested, limit %d", ErrAllocation, total, o.maxBytes)
	}

	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()

	storage := make([]byte, total)
	p = &Pool{
		slots:          make([]Slot, depth),
		samplesPerSlot: samplesPerSlot,
		group:          group,
	}
	length := protocol.DataFrameLength(samplesPerSlot)
	for i := range p.slots {
		frame := storage[i*frameSize : (i+1)*frameSize : (i+1)*frameSize]
		binary.BigEndian.PutUint32(frame[:protocol.LengthFieldSize], length)
		frame[protocol.LengthFieldSize] = group
		p.slots[i].frame = frame
	}
	return p, nil
}

// Depth returns the number of slots.
func (p *Pool) Depth() int { return len(p.slots) }

// SamplesPerSlot returns the sample capacity of every slot.
func (p *Pool) SamplesPerSlot() int { return p.samplesPerSlot }

// Group returns the group tag written into every frame.
func (p *Pool) Group() byte { return p.group }

// Bytes returns the total frame storage of the pool.
func (p *Pool) Bytes() int { return len(p.slots) * protocol.DataFrameSize(p.samplesPerSlot) }

// Slot returns the slot at index i modulo depth.
func (p *Pool) Slot(i int) *Slot { return &p.slots[i%len(p.slots)] }

// Next returns the index following i in ring order.
func (p *Pool) Next(i int) int { return (i + 1) % len(p.slots) }

// WriteCursor returns the index of the slot the producer currently targets.
func (p *Pool) WriteCursor() int { return int(p.write.Load()) }

// Active returns the slot the producer currently targets. Producer only.
func (p *Pool) Active() *Slot { return &p.slots[p.write.Load()] }

// Advance moves the write cursor to the next slot, resets its offset and
// forces it not-ready. It reports true when that slot was still pending
// transmission, meaning its data is overwritten. Producer only.
func (p *Pool) Advance() (overwrote bool) {
	next := p.Next(int(p.write.Load()))
	s := &p.slots[next]
	s.reset()
	overwrote = s.ready.Swap(false)
	p.write.Store(int64(next))
	return overwrote
}

// SlotDuration returns how long the producer takes to fill one slot at hz.
func (p *Pool) SlotDuration(hz uint32) time.Duration {
	if hz == 0 {
		return 0
	}
	return time.Duration(p.samplesPerSlot) * time.Second / time.Duration(hz)
}
