package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"gauge-telemetry/pkg/geometry"
)

func word(text string, conf float64) Word {
	return Word{Text: text, Confidence: conf}
}

func TestParseNumeral(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100", 100, true},
		{" 20 ", 20, true},
		{"100,", 100, true},
		{"(0", 0, true},
		{"2.5", 2.5, true},
		{"-10", -10, true},
		{"PSI", 0, false},
		{"1O0", 0, false},
		{"", 0, false},
		{"123456", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumeral(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScaleFromWords(t *testing.T) {
	hint, ok := ScaleFromWords([]Word{
		word("20", 90), word("PSI", 95), word("0", 88), word("100", 91),
		word("60", 85), word("40", 80), word("80", 92), word("20", 70),
	})
	require.True(t, ok)
	assert.Equal(t, 0.0, hint.Min)
	assert.Equal(t, 100.0, hint.Max)
	assert.Equal(t, []float64{0, 20, 40, 60, 80, 100}, hint.Numbers)
}

func TestScaleFromWordsSkipsLowConfidence(t *testing.T) {
	hint, ok := ScaleFromWords([]Word{word("0", 90), word("160", 12), word("100", 75)})
	require.True(t, ok)
	assert.Equal(t, 100.0, hint.Max)

	_, ok = ScaleFromWords([]Word{word("0", 90), word("100", 10)})
	assert.False(t, ok)
}

func TestScaleFromWordsNeedsTwoNumbers(t *testing.T) {
	_, ok := ScaleFromWords(nil)
	assert.False(t, ok)
	_, ok = ScaleFromWords([]Word{word("50", 99), word("50", 99)})
	assert.False(t, ok)
}

func TestWordsInDial(t *testing.T) {
	c := geometry.Circle{X: 100, Y: 100, Radius: 50}
	inside := Word{Text: "0", Bounds: geometry.RectInt{X: 90, Y: 60, Width: 20, Height: 10}}
	corner := Word{Text: "9", Bounds: geometry.RectInt{X: 52, Y: 52, Width: 6, Height: 6}}
	outside := Word{Text: "1", Bounds: geometry.RectInt{X: 200, Y: 200, Width: 10, Height: 10}}

	got := wordsInDial([]Word{inside, corner, outside}, c)
	assert.Equal(t, []Word{inside}, got)
}

func TestClipRect(t *testing.T) {
	r := clipRect(geometry.RectInt{X: -10, Y: 20, Width: 100, Height: 100}, 80, 60)
	assert.Equal(t, geometry.RectInt{X: 0, Y: 20, Width: 80, Height: 40}, r)
}

func TestUnscale(t *testing.T) {
	r := unscale(image.Rect(20, 40, 60, 80), 2, geometry.RectInt{X: 100, Y: 50})
	assert.Equal(t, geometry.RectInt{X: 110, Y: 70, Width: 20, Height: 20}, r)
}

func TestPrepareDial(t *testing.T) {
	t.Run("dark text on white stays dark on light", func(t *testing.T) {
		src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 100, 100, gocv.MatTypeCV8UC3)
		defer src.Close()
		gocv.Rectangle(&src, image.Rect(40, 40, 60, 60), color.RGBA{A: 255}, -1)

		out, scale := PrepareDial(src)
		defer out.Close()
		assert.Equal(t, 3.0, scale)
		assert.Equal(t, 300, out.Rows())
		assert.Equal(t, 1, out.Channels())
		assert.Equal(t, uint8(255), out.GetUCharAt(5, 5))
		assert.Equal(t, uint8(0), out.GetUCharAt(150, 150))
	})

	t.Run("light text on black is inverted", func(t *testing.T) {
		src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 400, 400, gocv.MatTypeCV8UC3)
		defer src.Close()
		gocv.Rectangle(&src, image.Rect(180, 180, 220, 220), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

		out, scale := PrepareDial(src)
		defer out.Close()
		assert.Equal(t, 1.0, scale)
		assert.Equal(t, uint8(255), out.GetUCharAt(10, 10))
		assert.Equal(t, uint8(0), out.GetUCharAt(200, 200))
	})
}
