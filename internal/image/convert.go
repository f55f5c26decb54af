package image

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// stripes splits rows into one contiguous band per CPU and runs fn on each
// band concurrently.
func stripes(rows int, fn func(y0, y1 int)) {
	workers := runtime.NumCPU()
	per := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for y0 := 0; y0 < rows; y0 += per {
		y1 := y0 + per
		if y1 > rows {
			y1 = rows
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

// ToMat converts a Go image to a BGR Mat. The caller must close the result.
func ToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	stripes(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
				mat.SetUCharAt(y, x*3+0, uint8(bl>>8))
				mat.SetUCharAt(y, x*3+1, uint8(g>>8))
				mat.SetUCharAt(y, x*3+2, uint8(r>>8))
			}
		}
	})
	return mat, nil
}

// FromMat converts a BGR or single-channel Mat to an RGBA image.
func FromMat(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	ch := mat.Channels()
	if ch != 1 && ch != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", ch)
	}

	h, w := mat.Rows(), mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stripes(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := y * img.Stride
			for x := 0; x < w; x++ {
				o := row + x*4
				if ch == 1 {
					v := mat.GetUCharAt(y, x)
					img.Pix[o+0], img.Pix[o+1], img.Pix[o+2] = v, v, v
				} else {
					img.Pix[o+0] = mat.GetUCharAt(y, x*3+2)
					img.Pix[o+1] = mat.GetUCharAt(y, x*3+1)
					img.Pix[o+2] = mat.GetUCharAt(y, x*3+0)
				}
				img.Pix[o+3] = 255
			}
		}
	})
	return img, nil
}
