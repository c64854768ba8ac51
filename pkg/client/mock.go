package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/iaware/pkg/analog"
	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/protocol"
)

// Mock simulates a sensor node for development without hardware. It behaves
// like the node: streaming starts disabled and a sampling frequency change
// restarts it with streaming disabled again.
type Mock struct {
	cfg *config.MockConfig

	frames    chan Frame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	samplingHz uint32
	sendDeciHz uint32
	streaming  bool
	source     *analog.Mock
	restarts   int
}

// NewMock creates a mocked node sampling at samplingHz and sending deciHz/10
// frames per second.
func NewMock(cfg *config.MockConfig, samplingHz uint32, sendDeciHz uint32) *Mock {
	if samplingHz == 0 {
		samplingHz = 20000
	}
	if sendDeciHz == 0 {
		sendDeciHz = 200
	}
	return &Mock{
		cfg:        cfg,
		samplingHz: samplingHz,
		sendDeciHz: sendDeciHz,
		source:     analog.NewMock(cfg, samplingHz),
	}
}

// Connect starts generating frames.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.frames = make(chan Frame, DefaultBufferSize)
	m.connected = true

	go m.generateFrames(m.ctx, m.frames)
	return nil
}

// Close stops the mocked node.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}
	m.cancel()
	m.connected = false
	return nil
}

// Frames returns the channel of generated frames.
func (m *Mock) Frames() <-chan Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frames
}

// IsConnected returns whether the mock is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Mock) Start() error { return m.setStreaming(true) }

func (m *Mock) Stop() error { return m.setStreaming(false) }

func (m *Mock) setStreaming(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.streaming = on
	return nil
}

// SetSamplingFrequency simulates the node's persist-and-restart.
func (m *Mock) SetSamplingFrequency(hz uint32) error {
	if hz == 0 {
		return fmt.Errorf("sampling frequency must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.samplingHz = hz
	m.streaming = false
	m.source = analog.NewMock(m.cfg, hz)
	m.restarts++
	return nil
}

// SetSendFrequency changes the frame rate, in 0.1 Hz units.
func (m *Mock) SetSendFrequency(deciHz uint8) error {
	if deciHz == 0 {
		return fmt.Errorf("send frequency must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.sendDeciHz = uint32(deciHz)
	return nil
}

// Restarts returns how many restarts were simulated.
func (m *Mock) Restarts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restarts
}

func (m *Mock) generateFrames(ctx context.Context, out chan Frame) {
	defer close(out)

	timer := time.NewTimer(m.period())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if f, ok := m.generateFrame(); ok {
				select {
				case out <- f:
				case <-ctx.Done():
					return
				default:
					// consumer is behind, drop like the TCP client does
				}
			}
			timer.Reset(m.period())
		}
	}
}

func (m *Mock) period() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return 10 * time.Second / time.Duration(m.sendDeciHz)
}

// generateFrame produces one send period of samples when streaming.
func (m *Mock) generateFrame() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.streaming {
		return Frame{}, false
	}

	n := int(uint64(m.samplingHz) * 10 / uint64(m.sendDeciHz))
	if n < 1 {
		n = 1
	}
	samples := make([]uint16, n)
	for i := range samples {
		samples[i] = m.source.ReadSample()
	}

	return Frame{
		Received: time.Now(),
		DataFrame: protocol.DataFrame{
			Group:              protocol.HeaderGroup1,
			EffectiveFrequency: m.samplingHz,
			Samples:            samples,
		},
	}, true
}
