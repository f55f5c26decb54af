// Command gaugetest runs the gauge pipeline once on a still image and
// prints what it found.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"gocv.io/x/gocv"

	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/config"
	"gauge-telemetry/internal/gauge"
	gimage "gauge-telemetry/internal/image"
	"gauge-telemetry/internal/ocr"
	"gauge-telemetry/internal/pipeline"
	"gauge-telemetry/internal/vision"
	"gauge-telemetry/pkg/geometry"
)

var (
	good = color.New(color.Bold, color.FgGreen).SprintFunc()
	bad  = color.New(color.Bold, color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintfFunc()
)

func main() {
	os.Exit(run())
}

func run() int {
	imagePath := flag.String("image", "", "Path to gauge image (PNG, JPEG or TIFF)")
	profilePath := flag.String("profile", "config.json", "Calibration profile file")
	needle := flag.String("color", "", "Override needle color: red, black or blue")
	tolerance := flag.Float64("tolerance", 15, "Needle line tolerance in pixels")
	out := flag.String("out", "", "Write the annotated frame to this PNG")
	maskOut := flag.String("mask", "", "Write the needle color mask to this PNG")
	probe := flag.String("probe", "", "Classify the pixel at x,y")
	readScale := flag.Bool("ocr", false, "Read the dial scale with Tesseract")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: gaugetest -image <path> [-profile config.json] [-color red|black|blue] [-out annotated.png] [-mask mask.png] [-probe x,y] [-ocr]")
		return 1
	}

	still, err := gimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		return 1
	}
	fmt.Printf("Loaded %s image: %dx%d pixels\n", still.Format, still.Width(), still.Height())

	store, err := config.OpenStore(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Profile unreadable, using defaults: %v\n", err)
	}
	profile := config.NewProfiles(store).LoadOrDefault()
	if *needle != "" {
		c, err := gauge.ParseNeedleColor(*needle)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		profile.NeedleColor = c
	}
	fmt.Printf("Profile: %s needle, %.1f..%.1f deg -> %g..%g\n",
		profile.NeedleColor, profile.MinAngle, profile.MaxAngle, profile.MinValue, profile.MaxValue)

	opts := pipeline.DefaultOptions()
	opts.Params = opts.Params.WithLineTolerance(*tolerance)
	opts.AlwaysShowReference = true

	if *probe != "" {
		probePixel(still, *probe, opts.Params)
	}

	frame, err := gimage.ToMat(still.Image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to convert image: %v\n", err)
		return 1
	}
	defer frame.Close()

	reader := pipeline.NewReader(profile, calibration.NewMachine(), nil, opts)
	reading := reader.Process(frame)
	defer reading.Close()

	fmt.Println()
	if reading.Circle == nil {
		fmt.Printf("%-8s %s\n", "Gauge:", bad("not found"))
	} else {
		c := reading.Circle
		fmt.Printf("%-8s %s center (%d, %d) radius %d\n", "Gauge:", good("found"), c.X, c.Y, c.Radius)
	}
	if reading.Needle == nil {
		fmt.Printf("%-8s %s\n", "Needle:", bad("not found"))
	} else {
		n := reading.Needle
		fmt.Printf("%-8s %s (%d, %d) -> (%d, %d)\n", "Needle:", good("found"), n.X1, n.Y1, n.X2, n.Y2)
	}
	if reading.RawAngle != nil {
		fmt.Printf("%-8s %s\n", "Angle:", bold("%.1f deg", *reading.RawAngle))
	}
	if reading.Value != nil {
		fmt.Printf("%-8s %s\n", "Value:", bold("%.1f", *reading.Value))
	}

	if *readScale && reading.Circle != nil {
		sr, err := ocr.NewScaleReader()
		if err != nil {
			fmt.Fprintf(os.Stderr, "OCR unavailable: %v\n", err)
		} else {
			hint, err := sr.Read(frame, *reading.Circle)
			sr.Close()
			if err != nil {
				fmt.Printf("%-8s %s (%v)\n", "Scale:", bad("not read"), err)
			} else {
				fmt.Printf("%-8s %g..%g from %v\n", "Scale:", hint.Min, hint.Max, hint.Numbers)
			}
		}
	}

	if *out != "" {
		img, err := gimage.FromMat(reading.Annotated)
		if err == nil {
			err = gimage.SavePNG(*out, img)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
			return 1
		}
		fmt.Printf("\nAnnotated frame written to %s\n", *out)
	}

	if *maskOut != "" {
		if reading.Circle == nil {
			fmt.Fprintln(os.Stderr, "No gauge found, mask not written")
		} else if err := writeMask(*maskOut, frame, *reading.Circle, profile.NeedleColor, opts.Params); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *maskOut, err)
			return 1
		} else {
			fmt.Printf("Needle mask written to %s\n", *maskOut)
		}
	}

	if reading.Value == nil {
		return 2
	}
	return 0
}

func writeMask(path string, frame gocv.Mat, circle geometry.Circle, c gauge.NeedleColor, p vision.Params) error {
	mask := vision.NeedleMask(frame, circle, c, p)
	defer mask.Close()
	img, err := gimage.FromMat(mask)
	if err != nil {
		return err
	}
	return gimage.SavePNG(path, img)
}

func probePixel(still *gimage.Still, arg string, p vision.Params) {
	x, y, err := parsePoint(arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad -probe %q: %v\n", arg, err)
		return
	}
	c := still.PixelAt(x, y)
	class, ok := vision.ClassifyPixel(c, p)
	verdict := bad("no needle class")
	if ok {
		verdict = good(class.String())
	}
	fmt.Printf("Pixel (%d, %d): RGB(%d, %d, %d) -> %s\n", x, y, c.R, c.G, c.B, verdict)
}

func parsePoint(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, errors.New("want x,y")
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
