package gauge

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultWindow is the number of raw values averaged by a Smoother.
	DefaultWindow = 5
	// DefaultZeroSnap is the magnitude below which a smoothed value reads 0.
	DefaultZeroSnap = 1.2
)

// Smoother is a fixed-size moving average over raw mapped values. Outputs
// whose magnitude is below the snap threshold are reported as exactly zero
// so a gauge at rest does not flicker.
//
// A Smoother is not safe for concurrent use; each reader owns one.
type Smoother struct {
	window []float64
	size   int
	snap   float64
}

// NewSmoother creates a smoother averaging the last size values. Non-positive
// arguments fall back to the defaults.
func NewSmoother(size int, snap float64) *Smoother {
	if size <= 0 {
		size = DefaultWindow
	}
	if snap < 0 {
		snap = DefaultZeroSnap
	}
	return &Smoother{
		window: make([]float64, 0, size),
		size:   size,
		snap:   snap,
	}
}

// Add pushes a raw value, evicting the oldest when the window is full, and
// returns the smoothed output.
func (s *Smoother) Add(v float64) float64 {
	if len(s.window) == s.size {
		copy(s.window, s.window[1:])
		s.window = s.window[:s.size-1]
	}
	s.window = append(s.window, v)

	mean := Round1(stat.Mean(s.window, nil))
	if math.Abs(mean) < s.snap {
		return 0
	}
	return mean
}

// Len returns how many raw values are currently in the window.
func (s *Smoother) Len() int {
	return len(s.window)
}

// Values returns a copy of the window, oldest first.
func (s *Smoother) Values() []float64 {
	out := make([]float64, len(s.window))
	copy(out, s.window)
	return out
}

// Reset empties the window.
func (s *Smoother) Reset() {
	s.window = s.window[:0]
}
