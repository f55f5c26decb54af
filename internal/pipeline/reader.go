// Package pipeline turns camera frames into gauge readings: it locates the
// dial, finds the needle, maps its angle through the active calibration and
// smooths the result.
package pipeline

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/internal/vision"
	"gauge-telemetry/pkg/geometry"
)

// ProfileSaver persists a committed profile.
type ProfileSaver interface {
	Save(p gauge.Profile) error
}

// Options configures a Reader.
type Options struct {
	Params          vision.Params
	Unit            string
	SmoothingWindow int
	ZeroSnap        float64
	// AlwaysShowReference draws the floor and ceiling rays outside
	// calibration too.
	AlwaysShowReference bool
}

// DefaultOptions returns the standard reader configuration.
func DefaultOptions() Options {
	return Options{
		Params:          vision.DefaultParams(),
		Unit:            "PSI",
		SmoothingWindow: gauge.DefaultWindow,
		ZeroSnap:        gauge.DefaultZeroSnap,
	}
}

// Reading is the result of processing one frame. Circle, Needle, RawAngle
// and Value are nil when the corresponding stage found nothing; Value is
// also nil while a calibration session is open.
type Reading struct {
	Time        time.Time
	Circle      *geometry.Circle
	Needle      *geometry.Segment
	RawAngle    *float64
	Value       *float64
	Calibration calibration.State

	// Annotated is a private copy of the input frame with the overlay drawn.
	Annotated gocv.Mat
}

// Close releases the annotated frame.
func (r *Reading) Close() error {
	return r.Annotated.Close()
}

// Reader is the per-camera gauge vision pipeline. It owns the active
// calibration profile and the smoothing window.
type Reader struct {
	opts    Options
	machine *calibration.Machine
	saver   ProfileSaver

	mu      sync.RWMutex
	profile gauge.Profile
	// preview is the provisional profile published mid-calibration.
	preview *gauge.Profile

	smoother *gauge.Smoother
	now      func() time.Time
}

// NewReader creates a reader with the given committed profile. The reader
// subscribes to machine's events; saver may be nil.
func NewReader(profile gauge.Profile, machine *calibration.Machine, saver ProfileSaver, opts Options) *Reader {
	if machine == nil {
		machine = calibration.NewMachine()
	}
	r := &Reader{
		opts:     opts,
		machine:  machine,
		saver:    saver,
		profile:  profile,
		smoother: gauge.NewSmoother(opts.SmoothingWindow, opts.ZeroSnap),
		now:      time.Now,
	}
	machine.On(r.HandleCalibrationEvent)
	return r
}

// Machine returns the calibration machine driving this reader.
func (r *Reader) Machine() *calibration.Machine {
	return r.machine
}

// Profile returns the committed calibration profile.
func (r *Reader) Profile() gauge.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profile
}

// SetProfile replaces the committed profile without persisting it. Used
// when the profile is reloaded from disk.
func (r *Reader) SetProfile(p gauge.Profile) {
	r.mu.Lock()
	r.profile = p
	r.mu.Unlock()
	logrus.WithField("profile", p).Info("profile replaced")
}

// SetNeedleColor changes the needle color of the committed profile and
// persists it. A persistence error is returned but the new color stays in
// effect.
func (r *Reader) SetNeedleColor(c gauge.NeedleColor) error {
	r.mu.Lock()
	r.profile.NeedleColor = c
	p := r.profile
	r.mu.Unlock()

	logrus.WithField("color", c).Info("needle color changed")
	return r.persist(p)
}

// HandleCalibrationEvent reacts to calibration progress: a provisional
// profile only affects overlays, a final one becomes the committed profile
// and is persisted, and a cancel drops any provisional profile.
func (r *Reader) HandleCalibrationEvent(ev calibration.Event) {
	switch ev.Kind {
	case calibration.EventProfileUpdated:
		p := ev.Profile
		r.mu.Lock()
		if ev.Final {
			r.profile = p
			r.preview = nil
		} else {
			r.preview = &p
		}
		r.mu.Unlock()
		if ev.Final {
			if err := r.persist(p); err != nil {
				logrus.WithError(err).Error("calibrated profile kept in memory only")
			}
		}
	case calibration.EventStateChanged:
		if ev.To == calibration.StateIdle {
			r.mu.Lock()
			r.preview = nil
			r.mu.Unlock()
		}
	}
}

func (r *Reader) persist(p gauge.Profile) error {
	if r.saver == nil {
		return nil
	}
	return r.saver.Save(p)
}

// Process runs one pipeline cycle on frame. frame is not modified; the
// caller must Close the returned reading.
func (r *Reader) Process(frame gocv.Mat) Reading {
	session, calibrating := r.machine.Session()
	reading := Reading{
		Time:        r.now(),
		Calibration: calibration.StateIdle,
		Annotated:   frame.Clone(),
	}
	if calibrating {
		reading.Calibration = session.State
	}

	r.mu.RLock()
	profile := r.profile
	overlayProfile := profile
	if r.preview != nil {
		overlayProfile = *r.preview
	}
	r.mu.RUnlock()

	needleColor := profile.NeedleColor
	if calibrating {
		needleColor = session.NeedleColor
		overlayProfile.NeedleColor = needleColor
	}

	overlay := vision.Overlay{
		Unit:        r.opts.Unit,
		Calibrating: calibrating,
		Reference:   calibrating || r.opts.AlwaysShowReference,
		Profile:     overlayProfile,
	}
	if calibrating {
		overlay.Prompt = calibration.Prompt(session.State)
	}

	circle, ok := vision.LocateGauge(frame, r.opts.Params)
	if !ok {
		logrus.Trace("no gauge in frame")
		vision.Annotate(&reading.Annotated, overlay)
		return reading
	}
	reading.Circle = &circle
	overlay.Circle = &circle

	seg, ok := vision.DetectNeedle(frame, circle, needleColor, r.opts.Params)
	if !ok {
		logrus.WithField("circle", circle).Trace("no needle in gauge")
		vision.Annotate(&reading.Annotated, overlay)
		return reading
	}
	reading.Needle = &seg
	overlay.Needle = &seg

	angle, _ := gauge.NeedleAngle(&seg, circle.Center())
	reading.RawAngle = &angle
	overlay.Angle = &angle

	if calibrating {
		r.machine.Observe(angle)
	} else {
		value := r.smoother.Add(gauge.MapAngle(angle, profile))
		reading.Value = &value
		overlay.Value = &value
	}

	vision.Annotate(&reading.Annotated, overlay)
	return reading
}
