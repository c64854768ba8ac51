// Package scope draws the received sample window as an oscilloscope trace.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/monitor"
	"github.com/itohio/iaware/pkg/sample"
)

const defaultPlotPoints = 1000

// ScopeWidget displays the monitor window and its statistics.
type ScopeWidget struct {
	widget.BaseWidget

	window    time.Duration
	maxPoints int

	mu      sync.RWMutex
	display []sample.Sample
	values  []float64
	stats   monitor.Stats

	yMin, yMax float64
	xMin       time.Time
	xSpan      time.Duration
}

// New creates a scope sized by the monitor configuration.
func New(cfg *config.MonitorConfig) *ScopeWidget {
	points := cfg.PlotPoints
	if points <= 0 {
		points = defaultPlotPoints
	}
	window := time.Duration(cfg.WindowSeconds * float64(time.Second))
	if window <= 0 {
		window = 2 * time.Second
	}
	s := &ScopeWidget{
		window:    window,
		maxPoints: points,
		display:   make([]sample.Sample, 0, points),
		values:    make([]float64, 0, points),
		yMin:      0,
		yMax:      1,
		xMin:      time.Now(),
		xSpan:     window,
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData replaces the displayed window. Call it on the main thread,
// e.g. from fyne.Do.
func (s *ScopeWidget) UpdateData(samples []sample.Sample, stats monitor.Stats) {
	s.mu.Lock()
	s.display = sample.Downsample(s.display, samples, s.maxPoints)
	s.values = sample.Values(s.values, s.display)
	s.stats = stats
	s.yMin, s.yMax = autoScale(s.values)

	if n := len(s.display); n > 0 {
		s.xMin = s.display[0].Timestamp
		s.xSpan = max(s.display[n-1].Timestamp.Sub(s.xMin), s.window)
	}
	s.mu.Unlock()

	s.Refresh()
}

// Clear drops the displayed data.
func (s *ScopeWidget) Clear() {
	s.UpdateData(nil, monitor.Stats{})
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
