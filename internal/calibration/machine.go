package calibration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gauge-telemetry/internal/gauge"
)

// Machine drives calibration sessions. At most one session is open at a
// time. All methods are safe for concurrent use; listeners are invoked
// after the machine's lock is released.
type Machine struct {
	mu        sync.Mutex
	session   *Session
	listeners []Listener
	now       func() time.Time
}

// NewMachine creates an idle machine.
func NewMachine() *Machine {
	return &Machine{now: time.Now}
}

// On registers a listener for every event the machine emits.
func (m *Machine) On(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return StateIdle
	}
	return m.session.State
}

// Session returns a copy of the open session, or false when idle.
func (m *Machine) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return m.session.clone(), true
}

// Start opens a session seeded from the active profile.
func (m *Machine) Start(active gauge.Profile) error {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.session = &Session{
		ID:          uuid.NewString(),
		State:       StateSelectColor,
		StartedAt:   m.now(),
		NeedleColor: active.NeedleColor,
		MinValue:    active.MinValue,
		MaxValue:    active.MaxValue,
		MinAngle:    active.MinAngle,
		MaxAngle:    active.MaxAngle,
	}
	ev := m.transitionLocked(ActionStart, StateIdle)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Choose sets the working needle color. Only valid in SelectColor.
func (m *Machine) Choose(c gauge.NeedleColor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.expectLocked(StateSelectColor); err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("%w: needle color %d", ErrInvalidInput, int(c))
	}
	m.session.NeedleColor = c
	logrus.WithFields(logrus.Fields{"session": m.session.ID, "color": c}).Debug("calibration color chosen")
	return nil
}

// Next confirms the color and moves on to value range entry.
func (m *Machine) Next() error {
	m.mu.Lock()
	if err := m.expectLocked(StateSelectColor); err != nil {
		m.mu.Unlock()
		return err
	}
	m.session.State = StateInputRange
	ev := m.transitionLocked(ActionNext, StateSelectColor)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Submit takes the operator's printed minimum and maximum values. Both must
// parse as finite numbers; otherwise the machine stays in InputRange and
// the returned error wraps ErrInvalidInput.
func (m *Machine) Submit(minText, maxText string) error {
	m.mu.Lock()
	if err := m.expectLocked(StateInputRange); err != nil {
		m.mu.Unlock()
		return err
	}
	minVal, err := parseValue("minimum", minText)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	maxVal, err := parseValue("maximum", maxText)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.session.MinValue = minVal
	m.session.MaxValue = maxVal
	m.session.State = StateCaptureMin
	ev := m.transitionLocked(ActionSubmit, StateInputRange)
	m.mu.Unlock()

	m.emit(ev)
	return nil
}

// Observe records the live needle angle so CaptureLast can use it. It is a
// no-op while idle.
func (m *Machine) Observe(angle float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}
	a := angle
	m.session.LastAngle = &a
}

// CaptureLast captures the most recently observed angle. The angle is read
// and captured under one lock, so a concurrent capture cannot move the
// session between the two.
func (m *Machine) CaptureLast() error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: capture in %s", ErrWrongState, StateIdle)
	}
	st := m.session.State
	if st != StateCaptureMin && st != StateCaptureMax {
		m.mu.Unlock()
		return fmt.Errorf("%w: capture in %s", ErrWrongState, st)
	}
	if m.session.LastAngle == nil {
		m.mu.Unlock()
		return ErrNoAngle
	}
	events, err := m.captureLocked(*m.session.LastAngle)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.emit(events...)
	return nil
}

// Capture records angle as the floor (CaptureMin) or the ceiling
// (CaptureMax). Capturing the floor publishes a provisional profile;
// capturing the ceiling commits the final profile and closes the session.
func (m *Machine) Capture(angle float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return fmt.Errorf("%w: angle %v", ErrInvalidInput, angle)
	}

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: capture in %s", ErrWrongState, StateIdle)
	}
	events, err := m.captureLocked(angle)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.emit(events...)
	return nil
}

func (m *Machine) captureLocked(angle float64) ([]Event, error) {
	angle = gauge.NormalizeAngle(angle)

	var events []Event
	switch m.session.State {
	case StateCaptureMin:
		m.session.MinAngle = angle
		m.session.State = StateCaptureMax
		events = append(events,
			m.profileEventLocked(false),
			m.transitionLocked(ActionCapture, StateCaptureMin))
	case StateCaptureMax:
		m.session.MaxAngle = angle
		final := m.profileEventLocked(true)
		m.session.State = StateIdle
		done := m.transitionLocked(ActionCapture, StateCaptureMax)
		m.session = nil
		events = append(events, final, done)
		logrus.WithFields(logrus.Fields{
			"session":   final.Session.ID,
			"color":     final.Profile.NeedleColor,
			"min_angle": final.Profile.MinAngle,
			"max_angle": final.Profile.MaxAngle,
			"min_val":   final.Profile.MinValue,
			"max_val":   final.Profile.MaxValue,
		}).Info("calibration committed")
	default:
		return nil, fmt.Errorf("%w: capture in %s", ErrWrongState, m.session.State)
	}
	return events, nil
}

// Cancel discards the open session. The committed profile is untouched.
// Cancelling while idle does nothing.
func (m *Machine) Cancel() {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	from := m.session.State
	m.session.State = StateIdle
	ev := m.transitionLocked(ActionCancel, from)
	m.session = nil
	m.mu.Unlock()

	m.emit(ev)
}

func (m *Machine) expectLocked(want State) error {
	got := StateIdle
	if m.session != nil {
		got = m.session.State
	}
	if got != want {
		return fmt.Errorf("%w: in %s, want %s", ErrWrongState, got, want)
	}
	return nil
}

func (m *Machine) transitionLocked(action Action, from State) Event {
	ev := Event{
		Kind:    EventStateChanged,
		Action:  action,
		From:    from,
		To:      m.session.State,
		Session: m.session.clone(),
	}
	logrus.WithFields(logrus.Fields{
		"session": m.session.ID,
		"action":  action,
		"from":    from,
		"to":      ev.To,
	}).Info("calibration state changed")
	return ev
}

func (m *Machine) profileEventLocked(final bool) Event {
	return Event{
		Kind:    EventProfileUpdated,
		Action:  ActionCapture,
		From:    m.session.State,
		To:      m.session.State,
		Session: m.session.clone(),
		Profile: m.session.Profile(),
		Final:   final,
	}
}

func (m *Machine) emit(events ...Event) {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}

func (s *Session) clone() Session {
	c := *s
	if s.LastAngle != nil {
		a := *s.LastAngle
		c.LastAngle = &a
	}
	return c
}

func parseValue(name, text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s value %q is not a number", ErrInvalidInput, name, text)
	}
	return v, nil
}
