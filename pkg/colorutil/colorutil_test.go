package colorutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		name string
		in   [3]float64
		want HSV
	}{
		{"pure red", [3]float64{255, 0, 0}, HSV{H: 0, S: 255, V: 255}},
		{"pure green", [3]float64{0, 255, 0}, HSV{H: 60, S: 255, V: 255}},
		{"pure blue", [3]float64{0, 0, 255}, HSV{H: 120, S: 255, V: 255}},
		{"magenta-red wraps high", [3]float64{255, 0, 40}, HSV{H: 175.29, S: 255, V: 255}},
		{"black", [3]float64{0, 0, 0}, HSV{}},
		{"gray", [3]float64{128, 128, 128}, HSV{H: 0, S: 0, V: 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RGBToHSV(tt.in[0], tt.in[1], tt.in[2])
			assert.InDelta(t, tt.want.H, got.H, 0.01)
			assert.InDelta(t, tt.want.S, got.S, 0.01)
			assert.InDelta(t, tt.want.V, got.V, 0.01)
		})
	}
}

func TestLuma(t *testing.T) {
	assert.InDelta(t, 255, Luma(White), 0.01)
	assert.InDelta(t, 0, Luma(Black), 0.01)
	assert.InDelta(t, 76.245, Luma(Red), 0.01)
}
