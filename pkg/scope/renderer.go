package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/iaware/pkg/monitor"
	"github.com/itohio/iaware/pkg/sample"
)

const (
	gridRows = 8
	gridCols = 10
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	traceColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	meanColor  = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	statsColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

type scopeRenderer struct {
	scope   *ScopeWidget
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

func (r *scopeRenderer) Refresh() {
	s := r.scope
	s.mu.RLock()
	samples := s.display
	stats := s.stats
	yMin, yMax := s.yMin, s.yMax
	xMin, xSpan := s.xMin, s.xSpan
	s.mu.RUnlock()

	size := s.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	area := newPlotArea(size.Width, size.Height)
	r.objects = append(r.objects[:0], r.bg)

	r.drawGrid(area, yMin, yMax, xSpan)
	if len(samples) > 1 {
		r.drawTrace(area, samples, yMin, yMax, xMin, xSpan)
	}
	if stats.Count > 0 {
		r.drawMean(area, stats.Mean, yMin, yMax)
		r.drawStats(area, stats)
	}
}

func (r *scopeRenderer) drawGrid(area plotArea, yMin, yMax float64, span time.Duration) {
	for i := 0; i < gridRows+1; i++ {
		y := area.y + float32(i)*area.h/gridRows
		r.line(gridColor, 1, area.x, y, area.x+area.w, y)

		v := yMax - float64(i)*(yMax-yMin)/gridRows
		text := canvas.NewText(formatVoltage(v), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(area.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	for i := 0; i < gridCols+1; i++ {
		x := area.x + float32(i)*area.w/gridCols
		r.line(gridColor, 1, x, area.y, x, area.y+area.h)

		offset := time.Duration(int64(span) * int64(i) / gridCols)
		text := canvas.NewText(formatTime(offset), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, area.y+area.h+5))
		r.objects = append(r.objects, text)
	}
}

func (r *scopeRenderer) drawTrace(area plotArea, samples []sample.Sample, yMin, yMax float64, xMin time.Time, span time.Duration) {
	prev := fyne.NewPos(area.px(samples[0].Timestamp, xMin, span), area.py(samples[0].Value, yMin, yMax))
	for _, smp := range samples[1:] {
		next := fyne.NewPos(area.px(smp.Timestamp, xMin, span), area.py(smp.Value, yMin, yMax))
		r.line(traceColor, 1.5, prev.X, prev.Y, next.X, next.Y)
		prev = next
	}
}

func (r *scopeRenderer) drawMean(area plotArea, mean, yMin, yMax float64) {
	y := area.py(mean, yMin, yMax)
	r.line(meanColor, 1, area.x, y, area.x+area.w, y)
}

func (r *scopeRenderer) drawStats(area plotArea, st monitor.Stats) {
	label := fmt.Sprintf("mean %s  std %s  min %s  max %s  fs %s",
		formatVoltage(st.Mean), formatVoltage(st.StdDev),
		formatVoltage(st.Min), formatVoltage(st.Max),
		formatFrequency(st.Frequency))
	text := canvas.NewText(label, statsColor)
	text.TextSize = 11
	text.Move(fyne.NewPos(area.x+10, area.y+10))
	r.objects = append(r.objects, text)
}

func (r *scopeRenderer) line(c color.Color, width, x1, y1, x2, y2 float32) {
	l := canvas.NewLine(c)
	l.Position1 = fyne.NewPos(x1, y1)
	l.Position2 = fyne.NewPos(x2, y2)
	l.StrokeWidth = width
	r.objects = append(r.objects, l)
}

func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *scopeRenderer) Destroy() {}
