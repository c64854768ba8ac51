package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlotArea_Projection(t *testing.T) {
	a := newPlotArea(480, 360)
	assert.Equal(t, plotArea{x: 60, y: 20, w: 400, h: 300}, a)

	t0 := time.Unix(100, 0)
	span := 2 * time.Second
	assert.Equal(t, float32(60), a.px(t0, t0, span))
	assert.Equal(t, float32(260), a.px(t0.Add(time.Second), t0, span))
	assert.Equal(t, float32(460), a.px(t0.Add(5*time.Second), t0, span), "clamped to the right edge")
	assert.Equal(t, float32(60), a.px(t0.Add(time.Second), t0, 0))

	assert.Equal(t, float32(320), a.py(0, 0, 3))
	assert.Equal(t, float32(20), a.py(3, 0, 3))
	assert.Equal(t, float32(170), a.py(1.5, 0, 3))
	assert.Equal(t, float32(170), a.py(7, 1, 1), "empty range maps to the middle")
}

func TestNewPlotArea_TooSmall(t *testing.T) {
	a := newPlotArea(10, 10)
	assert.Zero(t, a.w)
	assert.Zero(t, a.h)
}

func TestNiceStep(t *testing.T) {
	tests := []struct {
		span  float32
		ticks int
		want  float32
	}{
		{10, 10, 1},
		{3.3, 8, 0.5},
		{15, 8, 2},
		{70, 8, 10},
		{0, 8, 1},
		{1, 0, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, niceStep(tt.span, tt.ticks), 1e-6, "span %v ticks %d", tt.span, tt.ticks)
	}
}

func TestAutoScale(t *testing.T) {
	lo, hi := autoScale(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = autoScale([]float64{1.0, 2.0, 1.5})
	assert.LessOrEqual(t, lo, 0.9)
	assert.GreaterOrEqual(t, hi, 2.1)
	assert.Less(t, hi-lo, 2.0)

	lo, hi = autoScale([]float64{1.65, 1.65})
	assert.Less(t, lo, 1.65)
	assert.Greater(t, hi, 1.65)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1.650V", formatVoltage(1.65))
	assert.Equal(t, "0.000V", formatVoltage(0.0001))
	assert.Equal(t, "-0.250V", formatVoltage(-0.25))
	assert.Equal(t, "0.50s", formatTime(500*time.Millisecond))
	assert.Equal(t, "1.5s", formatTime(1500*time.Millisecond))
	assert.Equal(t, "20.00 kHz", formatFrequency(20000))
	assert.Equal(t, "998 Hz", formatFrequency(998))
}
