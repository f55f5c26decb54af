package calibration

// Prompt returns the operator instruction shown for a state.
func Prompt(s State) string {
	switch s {
	case StateSelectColor:
		return "Step 1: select the needle color, then press Next."
	case StateInputRange:
		return "Step 2: enter the gauge's minimum and maximum printed values."
	case StateCaptureMin:
		return "Step 3: set the needle to the MINIMUM mark and press Capture."
	case StateCaptureMax:
		return "Step 4: set the needle to the MAXIMUM mark and press Capture."
	default:
		return "Press Calibrate to start."
	}
}

// ButtonLabel returns the label for the primary calibration button in s.
func ButtonLabel(s State) string {
	switch s {
	case StateIdle:
		return "Calibrate"
	case StateSelectColor:
		return "Next"
	case StateInputRange:
		return "Submit"
	default:
		return "Capture"
	}
}
