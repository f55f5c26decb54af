// Package calibration implements the guided protocol an operator follows to
// calibrate a gauge reader: pick the needle color, enter the printed value
// range, then park the needle on the floor and ceiling marks while the live
// angle is captured.
package calibration

import (
	"errors"
	"time"

	"gauge-telemetry/internal/gauge"
)

// State is a step of the calibration protocol. Steps are strictly ordered
// and only ever move forward, except for cancellation.
type State string

const (
	StateIdle        State = "Idle"
	StateSelectColor State = "SelectColor"
	StateInputRange  State = "InputRange"
	StateCaptureMin  State = "CaptureMin"
	StateCaptureMax  State = "CaptureMax"
)

// Active reports whether s belongs to an open session.
func (s State) Active() bool {
	return s != StateIdle && s != ""
}

// Action names an operator action, used in logs and events.
type Action string

const (
	ActionStart   Action = "Start"
	ActionChoose  Action = "Choose"
	ActionNext    Action = "Next"
	ActionSubmit  Action = "Submit"
	ActionCapture Action = "Capture"
	ActionCancel  Action = "Cancel"
)

var (
	// ErrInvalidInput is returned when operator input cannot be parsed. The
	// machine stays in its current state.
	ErrInvalidInput = errors.New("invalid calibration input")
	// ErrWrongState is returned when an action is not valid in the current state.
	ErrWrongState = errors.New("action not allowed in current calibration state")
	// ErrSessionActive is returned by Start while a session is already open.
	ErrSessionActive = errors.New("calibration session already active")
	// ErrNoAngle is returned by CaptureLast when no needle angle has been
	// observed during the session.
	ErrNoAngle = errors.New("no needle angle observed yet")
)

// Session is the working state of one calibration run.
type Session struct {
	ID          string            `json:"id"`
	State       State             `json:"state"`
	StartedAt   time.Time         `json:"started_at"`
	NeedleColor gauge.NeedleColor `json:"needle_color"`
	MinValue    float64           `json:"min_val"`
	MaxValue    float64           `json:"max_val"`
	MinAngle    float64           `json:"min_angle"`
	MaxAngle    float64           `json:"max_angle"`
	// LastAngle is the most recent live needle angle, nil until one is seen.
	LastAngle *float64 `json:"last_angle,omitempty"`
}

// Profile builds the calibration profile the session currently describes.
func (s Session) Profile() gauge.Profile {
	return gauge.Profile{
		NeedleColor: s.NeedleColor,
		MinAngle:    s.MinAngle,
		MaxAngle:    s.MaxAngle,
		MinValue:    s.MinValue,
		MaxValue:    s.MaxValue,
	}
}

// EventKind identifies what an Event reports.
type EventKind string

const (
	// EventStateChanged fires on every state transition, including Cancel.
	EventStateChanged EventKind = "StateChanged"
	// EventProfileUpdated carries a profile for the reader to adopt. It fires
	// once after the floor is captured (Final false) and once on commit
	// (Final true).
	EventProfileUpdated EventKind = "ProfileUpdated"
)

// Event is emitted to listeners registered with Machine.On.
type Event struct {
	Kind    EventKind     `json:"kind"`
	Action  Action        `json:"action"`
	From    State         `json:"from"`
	To      State         `json:"to"`
	Session Session       `json:"session"`
	Profile gauge.Profile `json:"profile"`
	Final   bool          `json:"final"`
}

// Listener receives calibration events. Listeners run synchronously on the
// goroutine that performed the action and must not call back into the
// machine's mutating methods.
type Listener func(Event)
