package analog

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/iaware/pkg/config"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Reading
		wantErr bool
	}{
		{
			name: "valid line",
			line: "1234567890123,2048",
			want: Reading{Timestamp: time.UnixMicro(1234567890123), Value: 2048},
		},
		{
			name: "extra fields ignored",
			line: "1234567890123,4095,1024,101",
			want: Reading{Timestamp: time.UnixMicro(1234567890123), Value: 4095},
		},
		{
			name: "16-bit maximum",
			line: "1,65535",
			want: Reading{Timestamp: time.UnixMicro(1), Value: 65535},
		},
		{
			name: "spaces around values",
			line: "1, 7",
			want: Reading{Timestamp: time.UnixMicro(1), Value: 7},
		},
		{name: "single field", line: "1234567890123", wantErr: true},
		{name: "non-numeric timestamp", line: "abc,2048", wantErr: true},
		{name: "non-numeric reading", line: "1,abc", wantErr: true},
		{name: "reading out of range", line: "1,65536", wantErr: true},
		{name: "negative reading", line: "1,-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSerial_Defaults(t *testing.T) {
	s := NewSerial("/dev/ttyACM0", 0)
	assert.Equal(t, DefaultBaudRate, s.baudRate)
	assert.False(t, s.IsConnected())
	assert.Equal(t, uint16(0), s.ReadSample())
	assert.NoError(t, s.Close())
}

// pipePort adapts an io.Pipe to io.ReadWriteCloser.
type pipePort struct {
	*io.PipeReader
	w *io.PipeWriter
}

func (p pipePort) Write(b []byte) (int, error) { return len(b), nil }
func (p pipePort) Close() error {
	p.w.Close()
	return p.PipeReader.Close()
}

func TestSerial_LatestReading(t *testing.T) {
	r, w := io.Pipe()
	s := NewSerial("test", 0)
	require.NoError(t, s.attach(pipePort{PipeReader: r, w: w}))
	assert.True(t, s.IsConnected())
	r2, w2 := io.Pipe()
	assert.Error(t, s.attach(pipePort{PipeReader: r2, w: w2}), "second attach must fail")

	_, err := w.Write([]byte("1,100\n\ngarbage\n2,200\n3,300\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Lines() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, uint16(300), s.ReadSample())
	assert.Equal(t, uint64(1), s.Errors())

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
}

func TestMock_Waveform(t *testing.T) {
	cfg := &config.MockConfig{Offset: 2048, Amplitude: 1000, SignalHz: 1000}
	m := NewMock(cfg, 4000)

	// quarter-period phase steps: 0, 90, 180, 270 degrees
	want := []uint16{2048, 3048, 2048, 1048, 2048}
	for i, w := range want {
		got := m.ReadSample()
		assert.InDelta(t, float64(w), float64(got), 1, "sample %d", i)
	}
}

func TestMock_Clamps(t *testing.T) {
	m := NewMock(&config.MockConfig{Offset: 60000, Amplitude: 30000, SignalHz: 1}, 4)
	m.ReadSample()
	assert.Equal(t, uint16(math.MaxUint16), m.ReadSample())
	m.ReadSample()
	assert.Equal(t, uint16(30000), m.ReadSample())

	low := NewMock(&config.MockConfig{Offset: 0, Amplitude: 100, SignalHz: 1}, 4)
	low.ReadSample()
	low.ReadSample()
	low.ReadSample()
	assert.Equal(t, uint16(0), low.ReadSample())
}

func TestMock_NilConfig(t *testing.T) {
	m := NewMock(nil, 20000)
	v := m.ReadSample()
	assert.InDelta(t, 2048, float64(v), 200)
}

func TestSequence(t *testing.T) {
	s := Sequence(math.MaxUint16 - 1)
	assert.Equal(t, uint16(math.MaxUint16-1), s.ReadSample())
	assert.Equal(t, uint16(math.MaxUint16), s.ReadSample())
	assert.Equal(t, uint16(0), s.ReadSample())
}
