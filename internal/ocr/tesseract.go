package ocr

import (
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"gauge-telemetry/pkg/geometry"
)

// DigitChars restricts recognition to what appears on a dial scale.
const DigitChars = "0123456789.-"

// ScaleReader runs Tesseract over the dial face. A single client is not safe
// for concurrent use, so calls are serialized.
type ScaleReader struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewScaleReader creates a reader with dictionary correction disabled.
func NewScaleReader() (*ScaleReader, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, pkgerrors.Wrap(err, "set OCR language")
	}
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	return &ScaleReader{client: client}, nil
}

// Close releases the Tesseract client.
func (r *ScaleReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// Read recognizes the numerals printed inside circle and returns the scale
// they span. ErrNoScale when fewer than two distinct numerals are found.
func (r *ScaleReader) Read(frame gocv.Mat, circle geometry.Circle) (ScaleHint, error) {
	words, err := r.Words(frame, circle)
	if err != nil {
		return ScaleHint{}, err
	}
	hint, ok := ScaleFromWords(wordsInDial(words, circle))
	if !ok {
		return ScaleHint{}, ErrNoScale
	}
	logrus.WithFields(logrus.Fields{"min": hint.Min, "max": hint.Max, "numbers": len(hint.Numbers)}).Debug("dial scale read")
	return hint, nil
}

// Words returns every word Tesseract finds within the circle's bounding
// square, in frame coordinates.
func (r *ScaleReader) Words(frame gocv.Mat, circle geometry.Circle) ([]Word, error) {
	if frame.Empty() {
		return nil, pkgerrors.New("empty frame")
	}
	crop := clipRect(circle.Bounds(), frame.Cols(), frame.Rows())
	if crop.Width <= 0 || crop.Height <= 0 {
		return nil, pkgerrors.New("dial outside frame")
	}

	region := frame.Region(crop.Image())
	defer region.Close()

	processed, scale := PrepareDial(region)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode dial")
	}
	defer buf.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil, pkgerrors.New("scale reader closed")
	}
	if err := r.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, pkgerrors.Wrap(err, "set PSM")
	}
	if err := r.client.SetWhitelist(DigitChars); err != nil {
		return nil, pkgerrors.Wrap(err, "set whitelist")
	}
	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, pkgerrors.Wrap(err, "set image")
	}
	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get word boxes")
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text:       b.Word,
			Bounds:     unscale(b.Box, scale, crop),
			Confidence: b.Confidence,
		})
	}
	return words, nil
}

// PrepareDial turns a BGR dial crop into dark text on a light background,
// upscaled so the smaller side is at least 300 px. It returns the image and
// the scale factor applied. The caller must close the result.
func PrepareDial(region gocv.Mat) (gocv.Mat, float64) {
	scale := 1.0
	if m := min(region.Rows(), region.Cols()); m > 0 && m < 300 {
		scale = 300.0 / float64(m)
	}
	scaled := gocv.NewMat()
	if scale != 1 {
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		region.CopyTo(&scaled)
	}

	gray := gocv.NewMat()
	if scaled.Channels() == 1 {
		scaled.CopyTo(&gray)
	} else {
		gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	}
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Dark dial faces come out mostly black; Tesseract wants dark glyphs.
	if total := binary.Rows() * binary.Cols(); total > 0 && gocv.CountNonZero(binary)*2 < total {
		gocv.BitwiseNot(binary, &binary)
	}
	return binary, scale
}

func clipRect(r geometry.RectInt, w, h int) geometry.RectInt {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.Width, w), min(r.Y+r.Height, h)
	return geometry.RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func unscale(b image.Rectangle, scale float64, crop geometry.RectInt) geometry.RectInt {
	return geometry.RectInt{
		X:      crop.X + int(float64(b.Min.X)/scale),
		Y:      crop.Y + int(float64(b.Min.Y)/scale),
		Width:  int(float64(b.Dx()) / scale),
		Height: int(float64(b.Dy()) / scale),
	}
}
