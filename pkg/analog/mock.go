package analog

import (
	"math"
	"math/rand"

	"github.com/itohio/iaware/pkg/config"
)

// Mock synthesizes a sine wave with noise, advancing one sampling period per
// ReadSample. It is driven from a single producer goroutine and is not safe
// for concurrent use.
type Mock struct {
	cfg   config.MockConfig
	step  float64 // phase increment per sample
	phase float64
	rng   *rand.Rand
}

var _ Source = (*Mock)(nil)

// NewMock creates a synthetic source sampled at samplingHz.
func NewMock(cfg *config.MockConfig, samplingHz uint32) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Offset:     2048,
			Amplitude:  1500,
			SignalHz:   50,
			NoiseLevel: 20,
		}
	}
	if samplingHz == 0 {
		samplingHz = 1
	}

	return &Mock{
		cfg:  *cfg,
		step: 2 * math.Pi * cfg.SignalHz / float64(samplingHz),
		rng:  rand.New(rand.NewSource(1)),
	}
}

func (m *Mock) ReadSample() uint16 {
	v := m.cfg.Offset + m.cfg.Amplitude*math.Sin(m.phase)
	if m.cfg.NoiseLevel > 0 {
		v += m.rng.NormFloat64() * m.cfg.NoiseLevel
	}

	m.phase += m.step
	if m.phase >= 2*math.Pi {
		m.phase -= 2 * math.Pi
	}

	return clamp(v)
}

func clamp(v float64) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}
