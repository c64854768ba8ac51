package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/protocol"
)

// ErrNotConnected is returned by commands issued before Connect.
var ErrNotConnected = errors.New("not connected")

// TCP connects to a node's data and control planes.
type TCP struct {
	dataAddr    string
	controlAddr string
	dialTimeout time.Duration
	bufSize     int
	log         *slog.Logger

	mu        sync.RWMutex
	data      net.Conn
	control   net.Conn
	frames    chan Frame
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	writeMu sync.Mutex
}

// NewTCP creates a client for the given data and control addresses.
func NewTCP(dataAddr, controlAddr string, dialTimeout time.Duration, bufSize int) *TCP {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &TCP{
		dataAddr:    dataAddr,
		controlAddr: controlAddr,
		dialTimeout: dialTimeout,
		bufSize:     bufSize,
		log:         logger.Component("client").With("data", dataAddr, "control", controlAddr),
	}
}

// Connect dials both planes and starts receiving frames. Either connection
// may be dialed independently of the other on the node, so a failure on one
// closes the other.
func (t *TCP) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return fmt.Errorf("already connected")
	}

	control, err := net.DialTimeout("tcp", t.controlAddr, t.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect control plane %s: %w", t.controlAddr, err)
	}
	data, err := net.DialTimeout("tcp", t.dataAddr, t.dialTimeout)
	if err != nil {
		control.Close()
		return fmt.Errorf("failed to connect data plane %s: %w", t.dataAddr, err)
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.data = data
	t.control = control
	t.frames = make(chan Frame, t.bufSize)
	t.done = make(chan struct{})
	t.connected = true

	go t.readFrames(t.ctx, data, t.frames, t.done)

	t.log.Info("connected")
	return nil
}

// Close closes both planes and waits for the reader to exit. The frames
// channel is closed afterwards.
func (t *TCP) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false
	t.cancel()
	errData := t.data.Close()
	errControl := t.control.Close()
	done := t.done
	t.mu.Unlock()

	<-done
	return errors.Join(errData, errControl)
}

// Frames returns the channel of received frames. It is closed when the data
// connection ends.
func (t *TCP) Frames() <-chan Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames
}

// IsConnected returns whether both planes are connected.
func (t *TCP) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Start enables streaming.
func (t *TCP) Start() error { return t.send(protocol.StartStream()) }

// Stop disables streaming.
func (t *TCP) Stop() error { return t.send(protocol.StopStream()) }

// SetSamplingFrequency asks the node to persist hz and restart. The node
// drops both connections while restarting.
func (t *TCP) SetSamplingFrequency(hz uint32) error {
	if hz == 0 {
		return fmt.Errorf("sampling frequency must be positive")
	}
	return t.send(protocol.SetSamplingFrequency(hz))
}

// SetSendFrequency changes the node's send frequency, in 0.1 Hz units.
func (t *TCP) SetSendFrequency(deciHz uint8) error {
	if deciHz == 0 {
		return fmt.Errorf("send frequency must be positive")
	}
	return t.send(protocol.SetSendFrequency(deciHz))
}

func (t *TCP) send(frame []byte) error {
	t.mu.RLock()
	c := t.control
	connected := t.connected
	t.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := c.Write(frame); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// readFrames decodes frames until the connection ends. Frames are dropped
// when the consumer falls behind.
func (t *TCP) readFrames(ctx context.Context, r io.Reader, out chan<- Frame, done chan struct{}) {
	defer close(done)
	defer close(out)

	var (
		buf     []byte
		dropped int
	)
	for {
		f, b, err := protocol.ReadDataFrame(r, buf, 0)
		buf = b
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				t.log.Warn("data plane read failed", "error", err)
			}
			if dropped > 0 {
				t.log.Warn("frames dropped", "count", dropped)
			}
			return
		}

		select {
		case out <- Frame{Received: time.Now(), DataFrame: f}:
		case <-ctx.Done():
			return
		default:
			dropped++
		}
	}
}
