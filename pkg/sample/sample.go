// Package sample turns received data frames into timestamped samples.
package sample

import (
	"time"

	"github.com/itohio/iaware/pkg/client"
	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/logger"
)

// Sample is one reading with its reconstructed capture time.
type Sample struct {
	Timestamp time.Time
	Raw       uint16
	Value     float64 // V
	Frequency uint32  // effective sampling frequency of the source frame
}

// Converter converts a frame channel into a sample channel.
type Converter func(in <-chan client.Frame) <-chan Sample

// NewConverter creates a converter expanding every frame into its samples.
// Capture times are reconstructed backwards from the frame's arrival using
// its effective frequency, or fallbackHz when the frame carries none.
func NewConverter(cfg *config.MonitorConfig, fallbackHz uint32, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 4096
	}
	log := logger.Component("sample")
	full := adcFullScale(cfg.ADCBits)

	return func(in <-chan client.Frame) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			dropped := 0
			for f := range in {
				for _, s := range expand(f, fallbackHz, cfg.VRef, full) {
					select {
					case out <- s:
					default:
						dropped++
					}
				}
				if dropped > 0 {
					log.Warn("converter output full, dropping samples", "count", dropped)
					dropped = 0
				}
			}
		}()

		return out
	}
}

// expand converts one frame.
func expand(f client.Frame, fallbackHz uint32, vref, full float64) []Sample {
	n := len(f.Samples)
	if n == 0 {
		return nil
	}

	hz := f.EffectiveFrequency
	if hz == 0 {
		hz = fallbackHz
	}
	var period time.Duration
	if hz > 0 {
		period = time.Second / time.Duration(hz)
	}

	out := make([]Sample, n)
	for i, raw := range f.Samples {
		out[i] = Sample{
			Timestamp: f.Received.Add(-time.Duration(n-1-i) * period),
			Raw:       raw,
			Value:     adcToVoltage(raw, vref, full),
			Frequency: hz,
		}
	}
	return out
}

// adcFullScale returns the largest reading of a bits-wide ADC.
func adcFullScale(bits int) float64 {
	if bits <= 0 || bits > 16 {
		bits = 12
	}
	return float64(uint32(1)<<bits - 1)
}

// adcToVoltage converts an ADC reading to volts.
func adcToVoltage(adc uint16, vref, full float64) float64 {
	return float64(adc) / full * vref
}
