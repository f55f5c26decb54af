package dashboard

import (
	"fmt"
	"strconv"

	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/gauge"
)

func formatValue(v *float64, unit string) string {
	if v == nil {
		return "-- " + unit
	}
	return fmt.Sprintf("%.1f %s", *v, unit)
}

func formatAngle(a *float64) string {
	if a == nil {
		return "angle: --"
	}
	return fmt.Sprintf("angle: %.1f deg", *a)
}

func formatPeak(v float64, unit string) string {
	return fmt.Sprintf("peak: %.1f %s", v, unit)
}

func formatProfile(p gauge.Profile) string {
	return fmt.Sprintf("%s needle, %.1f..%.1f deg -> %g..%g",
		p.NeedleColor, p.MinAngle, p.MaxAngle, p.MinValue, p.MaxValue)
}

// controls is what the calibration panel shows in one state.
type controls struct {
	Button      string
	ShowColor   bool
	ShowRange   bool
	CanCancel   bool
	CanSetColor bool
}

func controlsFor(s calibration.State) controls {
	return controls{
		Button:      calibration.ButtonLabel(s),
		ShowColor:   s == calibration.StateSelectColor,
		ShowRange:   s == calibration.StateInputRange,
		CanCancel:   s.Active(),
		CanSetColor: !s.Active(),
	}
}

// primaryAction performs the calibration step behind the main button.
// colorName and the range texts are read from the panel's inputs.
func primaryAction(m *calibration.Machine, active gauge.Profile, colorName, minText, maxText string) error {
	switch m.State() {
	case calibration.StateIdle:
		return m.Start(active)
	case calibration.StateSelectColor:
		c, err := gauge.ParseNeedleColor(colorName)
		if err != nil {
			return fmt.Errorf("%w: %v", calibration.ErrInvalidInput, err)
		}
		if err := m.Choose(c); err != nil {
			return err
		}
		return m.Next()
	case calibration.StateInputRange:
		return m.Submit(minText, maxText)
	default:
		return m.CaptureLast()
	}
}

func colorNames() []string {
	names := make([]string, len(gauge.NeedleColors))
	for i, c := range gauge.NeedleColors {
		names[i] = c.String()
	}
	return names
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
