// Package telemetry records gauge readings: to CSV, SQLite and MQTT sinks,
// and into an in-memory rolling history for charting.
package telemetry

import (
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrLogIO is wrapped by every sink failure.
var ErrLogIO = errors.New("telemetry log I/O error")

// Sample is one logged reading.
type Sample struct {
	Time time.Time `json:"time"`
	// Elapsed is seconds since the logger started.
	Elapsed float64 `json:"elapsed"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// Sink receives samples.
type Sink interface {
	Name() string
	Append(s Sample) error
	Close() error
}

// Logger fans each reading out to every sink. A failing sink does not stop
// the others.
type Logger struct {
	mu    sync.Mutex
	unit  string
	start time.Time
	sinks []Sink
	now   func() time.Time
}

// NewLogger starts the elapsed-time clock now.
func NewLogger(unit string, sinks ...Sink) *Logger {
	return &Logger{
		unit:  unit,
		start: time.Now(),
		sinks: sinks,
		now:   time.Now,
	}
}

// Add registers another sink.
func (l *Logger) Add(s Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// Log appends value to every sink. Absent values are not logged. The
// returned error wraps ErrLogIO and joins every sink failure.
func (l *Logger) Log(value *float64) error {
	if value == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.now()
	s := Sample{
		Time:    t,
		Elapsed: t.Sub(l.start).Seconds(),
		Value:   *value,
		Unit:    l.unit,
	}

	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Append(s); err != nil {
			logrus.WithError(err).WithField("sink", sink.Name()).Warn("telemetry append failed")
			errs = append(errs, pkgerrors.Wrapf(err, "sink %s", sink.Name()))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrLogIO}, errs...)...)
}

// Close closes every sink.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, pkgerrors.Wrapf(err, "close %s", sink.Name()))
		}
	}
	return errors.Join(errs...)
}
