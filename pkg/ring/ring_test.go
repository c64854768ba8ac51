package ring

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/iaware/pkg/protocol"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name       string
		fs         uint32
		send       uint32
		latency    time.Duration
		wantDepth  int
		wantPerSlt int
	}{
		{"boot defaults", 20000, 200, 2 * time.Second, 40, 1000},
		{"10 kHz", 10000, 200, 2 * time.Second, 40, 500},
		{"slow send", 20000, 10, 2 * time.Second, 2, 20000},
		{"fractional send", 1000, 15, 10 * time.Second, 15, 666},
		{"tiny fs", 1, 200, 2 * time.Second, 40, 1},
		{"zero send", 100, 0, time.Second, 2, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			depth, per := Size(tt.fs, tt.send, tt.latency)
			assert.Equal(t, tt.wantDepth, depth)
			assert.Equal(t, tt.wantPerSlt, per)
		})
	}
}

func TestNew_Layout(t *testing.T) {
	p, err := New(3, 4, protocol.HeaderGroup1)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Depth())
	assert.Equal(t, 4, p.SamplesPerSlot())
	assert.Equal(t, 3*protocol.DataFrameSize(4), p.Bytes())
	assert.Equal(t, 0, p.WriteCursor())

	for i := 0; i < p.Depth(); i++ {
		s := p.Slot(i)
		frame := s.Frame()
		assert.Len(t, frame, protocol.DataFrameSize(4))
		assert.Equal(t, uint32(1+4+2*4), binary.BigEndian.Uint32(frame[:4]))
		assert.Equal(t, protocol.HeaderGroup1, frame[4])
		assert.False(t, s.Ready())
		assert.True(t, s.Empty())
		assert.Equal(t, 4, s.Capacity())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		per   int
		opts  []Option
	}{
		{"depth one", 1, 10, nil},
		{"zero samples", 4, 0, nil},
		{"over limit", 40, 1000, []Option{WithMaxBytes(40 * 1000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.depth, tt.per, protocol.HeaderGroup1, tt.opts...)
			assert.ErrorIs(t, err, ErrAllocation)
			assert.Nil(t, p)
		})
	}

	p, err := New(40, 1000, protocol.HeaderGroup1, WithMaxBytes(40*protocol.DataFrameSize(1000)))
	require.NoError(t, err)
	assert.Equal(t, 40, p.Depth())
}

func TestSlot_FillAndRelease(t *testing.T) {
	p, err := New(2, 3, protocol.HeaderGroup1)
	require.NoError(t, err)

	s := p.Active()
	assert.False(t, s.Append(0x0102))
	assert.False(t, s.Append(0x0304))
	assert.True(t, s.Append(0x0506))
	assert.Equal(t, 6, s.Offset())

	s.Seal(12345, 7)
	assert.True(t, s.Ready())
	assert.Equal(t, uint32(12345), s.EffectiveFrequency())
	assert.Equal(t, uint64(7), s.Seq())
	assert.Equal(t, []byte{0, 0, 0, 11, 1, 0, 0, 0x30, 0x39, 1, 2, 3, 4, 5, 6}, s.Frame())

	assert.True(t, s.Release())
	assert.False(t, s.Ready())
	assert.False(t, s.Release(), "second release is a no-op")
}

func TestPool_AdvanceWraps(t *testing.T) {
	p, err := New(3, 1, protocol.HeaderGroup1)
	require.NoError(t, err)

	want := []int{1, 2, 0, 1}
	for _, idx := range want {
		p.Active().Append(1)
		p.Active().Seal(0, 0)
		p.Active().Release()
		assert.False(t, p.Advance())
		assert.Equal(t, idx, p.WriteCursor())
		assert.True(t, p.Active().Empty())
	}
	assert.Equal(t, 0, p.Next(2))
	assert.Same(t, p.Slot(0), p.Slot(3))
}

func TestPool_AdvanceReportsOverwrite(t *testing.T) {
	p, err := New(2, 1, protocol.HeaderGroup1)
	require.NoError(t, err)

	// fill slot 0 and slot 1 without a consumer
	p.Active().Append(1)
	p.Active().Seal(0, 0)
	assert.False(t, p.Advance())

	p.Active().Append(2)
	p.Active().Seal(0, 1)
	assert.True(t, p.Advance(), "slot 0 was still pending")
	assert.False(t, p.Slot(0).Ready())
}

func TestPool_SlotDuration(t *testing.T) {
	p, err := New(2, 1000, protocol.HeaderGroup1)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, p.SlotDuration(20000))
	assert.Equal(t, time.Duration(0), p.SlotDuration(0))
}
