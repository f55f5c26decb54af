// Package app holds the shared application state: the latest reading, the
// active profile, calibration progress and the telemetry that follows each
// frame. UI collaborators subscribe to its events.
package app

import (
	goimage "image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/internal/image"
	"gauge-telemetry/internal/ocr"
	"gauge-telemetry/internal/pipeline"
	"gauge-telemetry/pkg/geometry"
)

// EventType identifies different application events.
type EventType int

const (
	// EventReading carries a Snapshot after every processed frame.
	EventReading EventType = iota
	// EventProfileChanged carries the new committed gauge.Profile.
	EventProfileChanged
	// EventCalibrationChanged carries the calibration.Event.
	EventCalibrationChanged
	// EventScaleHint carries an ocr.ScaleHint read from the dial.
	EventScaleHint
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// TelemetryLogger records smoothed values.
type TelemetryLogger interface {
	Log(value *float64) error
}

// ValueHistory keeps the values shown on the live chart.
type ValueHistory interface {
	Push(v float64)
}

// ScaleReader reads the printed scale of the dial.
type ScaleReader interface {
	Read(frame gocv.Mat, circle geometry.Circle) (ocr.ScaleHint, error)
}

// Snapshot is the UI-facing copy of one Reading. Frame is the annotated
// image, already converted for display.
type Snapshot struct {
	Time        time.Time
	Circle      *geometry.Circle
	RawAngle    *float64
	Value       *float64
	Calibration calibration.State
	Frame       *goimage.RGBA
}

// Options wires the optional collaborators of State.
type Options struct {
	Logger  TelemetryLogger
	History ValueHistory
	// Scale and Frames enable the dial scale hint shown when a calibration
	// reaches InputRange.
	Scale  ScaleReader
	Frames pipeline.FrameReader
}

// State is shared between the frame loop and the UI collaborators.
type State struct {
	mu sync.RWMutex

	reader *pipeline.Reader
	opts   Options

	latest    *Snapshot
	scaleHint *ocr.ScaleHint
	frames    uint64

	listeners map[EventType][]EventListener
}

// NewState creates the application state around reader and subscribes to
// its calibration machine.
func NewState(reader *pipeline.Reader, opts Options) *State {
	s := &State{
		reader:    reader,
		opts:      opts,
		listeners: make(map[EventType][]EventListener),
	}
	reader.Machine().On(s.handleCalibration)
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := append([]EventListener(nil), s.listeners[event]...)
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Reader returns the gauge reader.
func (s *State) Reader() *pipeline.Reader {
	return s.reader
}

// Machine returns the calibration machine.
func (s *State) Machine() *calibration.Machine {
	return s.reader.Machine()
}

// Profile returns the committed profile.
func (s *State) Profile() gauge.Profile {
	return s.reader.Profile()
}

// Latest returns the most recent snapshot.
func (s *State) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

// Frames returns how many readings have been consumed.
func (s *State) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// ScaleHint returns the dial scale read for the current session, if any.
func (s *State) ScaleHint() (ocr.ScaleHint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scaleHint == nil {
		return ocr.ScaleHint{}, false
	}
	return *s.scaleHint, true
}

// Consume is the pipeline consumer: it records the reading, feeds the
// telemetry collaborators and notifies listeners. Telemetry failures are
// logged and never stop the loop.
func (s *State) Consume(r pipeline.Reading) {
	snap := Snapshot{
		Time:        r.Time,
		Circle:      r.Circle,
		RawAngle:    r.RawAngle,
		Value:       r.Value,
		Calibration: r.Calibration,
	}
	if !r.Annotated.Empty() {
		img, err := image.FromMat(r.Annotated)
		if err != nil {
			logrus.WithError(err).Debug("annotated frame not converted")
		} else {
			snap.Frame = img
		}
	}

	s.mu.Lock()
	s.latest = &snap
	s.frames++
	s.mu.Unlock()

	if r.Value != nil {
		if s.opts.History != nil {
			s.opts.History.Push(*r.Value)
		}
		if s.opts.Logger != nil {
			if err := s.opts.Logger.Log(r.Value); err != nil {
				logrus.WithError(err).Debug("telemetry not fully recorded")
			}
		}
	}

	s.Emit(EventReading, snap)
}

// ReloadProfile installs a profile read back from disk.
func (s *State) ReloadProfile(p gauge.Profile) {
	if p == s.reader.Profile() {
		return
	}
	s.reader.SetProfile(p)
	s.Emit(EventProfileChanged, p)
}

// SetNeedleColor changes and persists the needle color.
func (s *State) SetNeedleColor(c gauge.NeedleColor) error {
	err := s.reader.SetNeedleColor(c)
	s.Emit(EventProfileChanged, s.reader.Profile())
	return err
}

func (s *State) handleCalibration(ev calibration.Event) {
	if ev.Kind == calibration.EventStateChanged {
		switch ev.To {
		case calibration.StateSelectColor, calibration.StateIdle:
			s.mu.Lock()
			s.scaleHint = nil
			s.mu.Unlock()
		case calibration.StateInputRange:
			go s.readScale(ev.Session.ID)
		}
	}

	s.Emit(EventCalibrationChanged, ev)
	if ev.Kind == calibration.EventProfileUpdated && ev.Final {
		s.Emit(EventProfileChanged, ev.Profile)
	}
}

// readScale runs OCR on a fresh frame inside the last located dial.
func (s *State) readScale(sessionID string) {
	if s.opts.Scale == nil || s.opts.Frames == nil {
		return
	}
	snap, ok := s.Latest()
	if !ok || snap.Circle == nil {
		logrus.Debug("no dial located, scale hint skipped")
		return
	}
	frame, ok := s.opts.Frames.Read()
	defer frame.Close()
	if !ok {
		return
	}

	hint, err := s.opts.Scale.Read(frame, *snap.Circle)
	if err != nil {
		logrus.WithError(err).Debug("dial scale not read")
		return
	}

	// The operator may have moved on or cancelled while OCR ran.
	if sess, open := s.Machine().Session(); !open || sess.ID != sessionID {
		return
	}
	s.mu.Lock()
	s.scaleHint = &hint
	s.mu.Unlock()
	logrus.WithFields(logrus.Fields{"min": hint.Min, "max": hint.Max}).Info("dial scale hint available")
	s.Emit(EventScaleHint, hint)
}
