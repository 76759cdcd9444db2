package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"FinScan/internal/domain/models"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotSuffix is appended to the source stem to name the chart.
const PlotSuffix = "_plot.png"

// Renderer draws the close price series with anomalies overlaid.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
}

func NewRenderer(plotsDir string) *Renderer {
	return &Renderer{dir: plotsDir, width: 10 * vg.Inch, height: 5 * vg.Inch}
}

// Dir returns the plots directory.
func (r *Renderer) Dir() string { return r.dir }

// ChartName returns the chart file name for a source file.
func ChartName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + PlotSuffix
}

// Render saves <stem>_plot.png. It returns rendered=false without error when
// the table lacks a Date or Close column.
func (r *Renderer) Render(t *models.Table, source string) (string, bool, error) {
	dates, okDate := t.Column(models.ColumnDate)
	closes, okClose := t.Column(models.ColumnClose)
	if !okDate || !okClose || dates.Kind != models.KindTime || closes.Kind != models.KindNumeric {
		return "", false, nil
	}
	labels, _ := t.Labels()

	var series, flagged plotter.XYs
	for i := 0; i < t.Len(); i++ {
		ts, ok := dates.At(i)
		if !ok {
			continue
		}
		y, ok := closes.Float(i)
		if !ok || math.IsInf(y, 0) {
			continue
		}
		pt := plotter.XY{X: float64(ts.Unix()), Y: y}
		series = append(series, pt)
		if labels != nil && labels[i] == models.Anomalous {
			flagged = append(flagged, pt)
		}
	}

	p := plot.New()
	p.Title.Text = t.Source
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Close Price"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid())

	if len(series) > 0 {
		line, err := plotter.NewLine(series)
		if err != nil {
			return "", false, fmt.Errorf("close line: %w", err)
		}
		line.Color = color.RGBA{B: 255, A: 255}
		p.Add(line)
		p.Legend.Add("Close Price", line)
	}
	if len(flagged) > 0 {
		sc, err := plotter.NewScatter(flagged)
		if err != nil {
			return "", false, fmt.Errorf("anomaly points: %w", err)
		}
		sc.Color = color.RGBA{R: 255, A: 255}
		sc.Shape = draw.CircleGlyph{}
		sc.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("Anomalies", sc)
	}
	p.Legend.Top = true

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create plots dir: %w", err)
	}
	path := filepath.Join(r.dir, ChartName(source))
	if err := p.Save(r.width, r.height, path); err != nil {
		return "", false, fmt.Errorf("save chart: %w", err)
	}
	return path, true, nil
}
