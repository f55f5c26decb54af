// Package ocr reads the printed scale of a dial gauge so calibration can
// offer its end values as defaults.
package ocr

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gauge-telemetry/pkg/geometry"
)

// ErrNoScale is returned when fewer than two distinct numerals were read.
var ErrNoScale = errors.New("no dial scale recognized")

// MinConfidence is the Tesseract confidence below which words are ignored.
const MinConfidence = 40.0

// Word is one recognized token, in frame coordinates.
type Word struct {
	Text       string
	Bounds     geometry.RectInt
	Confidence float64
}

// ScaleHint is the numeric range printed on the dial.
type ScaleHint struct {
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Numbers []float64 `json:"numbers"`
}

var numeralPattern = regexp.MustCompile(`^-?\d{1,5}(\.\d{1,3})?$`)

// parseNumeral strips surrounding punctuation OCR tends to attach to tick
// labels ("100,", "(0") and parses what is left.
func parseNumeral(text string) (float64, bool) {
	text = strings.Trim(strings.TrimSpace(text), ".,;:'\"()[]|_")
	if !numeralPattern.MatchString(text) {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ScaleFromWords collects the distinct numerals among words and returns the
// smallest and largest. Low-confidence words are skipped.
func ScaleFromWords(words []Word) (ScaleHint, bool) {
	seen := make(map[float64]bool)
	var nums []float64
	for _, w := range words {
		if w.Confidence < MinConfidence {
			continue
		}
		v, ok := parseNumeral(w.Text)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		nums = append(nums, v)
	}
	if len(nums) < 2 {
		return ScaleHint{}, false
	}
	sort.Float64s(nums)
	return ScaleHint{Min: nums[0], Max: nums[len(nums)-1], Numbers: nums}, true
}

// wordsInDial keeps the words whose box center lies inside the circle.
func wordsInDial(words []Word, c geometry.Circle) []Word {
	var out []Word
	center := c.Center()
	for _, w := range words {
		mid := geometry.Point2D{
			X: float64(w.Bounds.X) + float64(w.Bounds.Width)/2,
			Y: float64(w.Bounds.Y) + float64(w.Bounds.Height)/2,
		}
		if mid.Distance(center) <= float64(c.Radius) {
			out = append(out, w)
		}
	}
	return out
}
