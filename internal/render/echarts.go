// Package render turns a labeled series into something a human looks at:
// an ECharts line chart for the browser, and a compact text panel for the
// terminal UI.
package render

import (
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/goth-coder/stream-bit/internal/domain"
)

// LineChart keeps the most recent series and renders it as an ECharts line
// chart on demand. Render is called from the orchestrator loop; WriteHTML
// from HTTP handlers, so the series is copied under a lock.
type LineChart struct {
	title    string
	subtitle string

	mu     sync.RWMutex
	series domain.RenderSeries
}

// NewLineChart creates a chart renderer with the given title block.
func NewLineChart(title, subtitle string) *LineChart {
	return &LineChart{title: title, subtitle: subtitle}
}

// Render stores the latest series. Never blocks.
func (l *LineChart) Render(s domain.RenderSeries) {
	l.mu.Lock()
	l.series = s
	l.mu.Unlock()
}

// Series returns a copy of the last rendered series.
func (l *LineChart) Series() domain.RenderSeries {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.series.Clone()
}

// WriteHTML renders the current series as a standalone HTML page.
func (l *LineChart) WriteHTML(w io.Writer) error {
	s := l.Series()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: l.title,
			Width:     "1100px",
			Height:    "520px",
		}),
		charts.WithTitleOpts(opts.Title{Title: l.title, Subtitle: l.subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	points := make([]opts.LineData, s.Len())
	for i, p := range s.Points {
		points[i] = opts.LineData{Value: p.InexactFloat64()}
	}

	line.SetXAxis(s.Labels).
		AddSeries("price", points,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)

	return line.Render(w)
}
