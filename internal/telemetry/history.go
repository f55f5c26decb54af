package telemetry

import (
	"image"
	"image/color"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// History is a fixed-length rolling window of values for the live chart.
// It starts filled with zeros so the chart has a flat baseline. The y-axis
// ceiling starts at 100 and grows to 1.2x any value that exceeds it.
type History struct {
	mu     sync.Mutex
	values []float64
	yMax   float64
	unit   string
}

// NewHistory creates a history of n points (at least 2).
func NewHistory(n int, unit string) *History {
	if n < 2 {
		n = 2
	}
	return &History{values: make([]float64, n), yMax: 100, unit: unit}
}

// Push appends v, dropping the oldest point.
func (h *History) Push(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	copy(h.values, h.values[1:])
	h.values[len(h.values)-1] = v
	if v > h.yMax {
		h.yMax = v * 1.2
	}
}

// Values returns a copy of the window, oldest first.
func (h *History) Values() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// YMax returns the current y-axis ceiling.
func (h *History) YMax() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.yMax
}

// Peak returns the largest value in the window.
func (h *History) Peak() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return floats.Max(h.values)
}

// Plot builds the chart of the current window.
func (h *History) Plot() (*plot.Plot, error) {
	values := h.Values()
	yMax := h.YMax()

	p := plot.New()
	p.Title.Text = "Live Telemetry"
	p.X.Label.Text = "Time (frames)"
	p.Y.Label.Text = "Pressure (" + h.unit + ")"
	p.Y.Min = 0
	p.Y.Max = yMax
	p.X.Min = 0
	p.X.Max = float64(len(values) - 1)
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	line.Width = vg.Points(2)
	p.Add(line)
	return p, nil
}

// Render draws the chart into an image of the given pixel size.
func (h *History) Render(width, height int) (image.Image, error) {
	p, err := h.Plot()
	if err != nil {
		return nil, err
	}
	const dpi = 96
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(width)*vg.Inch/dpi, vg.Length(height)*vg.Inch/dpi),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(c))
	return c.Image(), nil
}

// Save writes the chart to a file; the format follows the extension.
func (h *History) Save(path string, width, height vg.Length) error {
	p, err := h.Plot()
	if err != nil {
		return err
	}
	return p.Save(width, height, path)
}
