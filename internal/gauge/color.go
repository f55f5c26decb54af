// Package gauge holds the pure math of a dial gauge reading: needle color
// classes, calibration profiles, angle calculation, angle-to-value mapping,
// temporal smoothing and needle candidate selection.
package gauge

import (
	"fmt"
	"strings"
)

// NeedleColor is the closed set of needle color classes the detector can
// isolate.
type NeedleColor int

const (
	NeedleRed NeedleColor = iota
	NeedleBlack
	NeedleBlue
)

// NeedleColors lists every supported class in menu order.
var NeedleColors = []NeedleColor{NeedleRed, NeedleBlack, NeedleBlue}

func (c NeedleColor) String() string {
	switch c {
	case NeedleRed:
		return "red"
	case NeedleBlack:
		return "black"
	case NeedleBlue:
		return "blue"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the supported classes.
func (c NeedleColor) Valid() bool {
	return c >= NeedleRed && c <= NeedleBlue
}

// ParseNeedleColor parses a color class name, case-insensitively.
func ParseNeedleColor(s string) (NeedleColor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return NeedleRed, nil
	case "black":
		return NeedleBlack, nil
	case "blue":
		return NeedleBlue, nil
	}
	return NeedleRed, fmt.Errorf("unknown needle color %q (want red, black or blue)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c NeedleColor) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid needle color %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *NeedleColor) UnmarshalText(b []byte) error {
	parsed, err := ParseNeedleColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
