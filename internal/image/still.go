// Package image loads still images and converts between Go images and
// OpenCV matrices.
package image

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"
)

// Still is a single decoded image, used when reading a photographed gauge
// instead of a live camera.
type Still struct {
	Path   string
	Format string
	Image  image.Image
}

// Load decodes a PNG, JPEG or TIFF file.
func Load(path string) (*Still, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &Still{Path: path, Format: format, Image: img}, nil
}

// Width returns the image width in pixels.
func (s *Still) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (s *Still) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// PixelAt returns the color at image coordinates, or opaque black when out
// of bounds.
func (s *Still) PixelAt(x, y int) color.RGBA {
	if s.Image == nil {
		return color.RGBA{A: 255}
	}
	b := s.Image.Bounds()
	p := image.Pt(b.Min.X+x, b.Min.Y+y)
	if !p.In(b) {
		return color.RGBA{A: 255}
	}
	return color.RGBAModel.Convert(s.Image.At(p.X, p.Y)).(color.RGBA)
}

// SavePNG writes img to path as PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// SupportedFormats returns the list of supported image extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
