package scope

import (
	"strconv"
	"time"

	"github.com/chewxy/math32"
)

// plotArea is the rectangle inside the axis margins, in pixels.
type plotArea struct {
	x, y, w, h float32
}

const (
	marginLeft   = 60
	marginRight  = 20
	marginTop    = 20
	marginBottom = 40
)

func newPlotArea(width, height float32) plotArea {
	return plotArea{
		x: marginLeft,
		y: marginTop,
		w: math32.Max(width-marginLeft-marginRight, 0),
		h: math32.Max(height-marginTop-marginBottom, 0),
	}
}

// px maps t within [xMin, xMin+span] to a horizontal pixel.
func (p plotArea) px(t, xMin time.Time, span time.Duration) float32 {
	if span <= 0 {
		return p.x
	}
	f := float32(t.Sub(xMin).Seconds() / span.Seconds())
	return p.x + clamp01(f)*p.w
}

// py maps v within [yMin, yMax] to a vertical pixel, larger values higher.
func (p plotArea) py(v, yMin, yMax float64) float32 {
	if yMax <= yMin {
		return p.y + p.h/2
	}
	f := float32((v - yMin) / (yMax - yMin))
	return p.y + p.h - clamp01(f)*p.h
}

func clamp01(f float32) float32 {
	return math32.Min(math32.Max(f, 0), 1)
}

// niceStep returns a 1, 2 or 5 times power-of-ten step dividing span into
// about ticks intervals.
func niceStep(span float32, ticks int) float32 {
	if span <= 0 || ticks <= 0 {
		return 1
	}
	raw := span / float32(ticks)
	mag := math32.Pow(10, math32.Floor(math32.Log10(raw)))
	switch norm := raw / mag; {
	case norm <= 1:
		return mag
	case norm <= 2:
		return 2 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

// autoScale returns the y range of values with a 10% margin, aligned to the
// grid step.
func autoScale(values []float64) (yMin, yMax float64) {
	if len(values) == 0 {
		return 0, 1
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = float64(math32.Abs(float32(hi)))*0.1 + 0.1
	}
	margin := span * 0.1
	lo -= margin
	hi += margin

	step := float64(niceStep(float32(hi-lo), gridRows))
	return float64(math32.Floor(float32(lo/step))) * step, float64(math32.Ceil(float32(hi/step))) * step
}

func formatVoltage(v float64) string {
	if v > -0.0005 && v < 0.0005 {
		return "0.000V"
	}
	return strconv.FormatFloat(v, 'f', 3, 64) + "V"
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}

func formatFrequency(hz float64) string {
	if hz >= 1000 {
		return strconv.FormatFloat(hz/1000, 'f', 2, 64) + " kHz"
	}
	return strconv.FormatFloat(hz, 'f', 0, 64) + " Hz"
}
