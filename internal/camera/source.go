// Package camera provides the frame source: a background capture loop that
// keeps the most recent camera frame available to a consumer running at its
// own pace.
package camera

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrCameraUnavailable is returned by Start when the device cannot be opened.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Device is an open capture stream. *gocv.VideoCapture satisfies it.
type Device interface {
	Read(m *gocv.Mat) bool
	IsOpened() bool
	Close() error
}

// Opener opens the capture device with the given index.
type Opener func(index int) (Device, error)

// Config selects and sizes the capture device.
type Config struct {
	Index  int
	Width  int
	Height int
}

// OpenVideoCapture is the Opener for real cameras.
func OpenVideoCapture(cfg Config) Opener {
	return func(index int) (Device, error) {
		vc, err := gocv.OpenVideoCapture(index)
		if err != nil {
			return nil, err
		}
		if cfg.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		}
		if cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		// Keep the driver from queueing stale frames.
		vc.Set(gocv.VideoCaptureBufferSize, 1)
		return vc, nil
	}
}

// retryDelay paces the loop after a failed device read.
const retryDelay = 10 * time.Millisecond

// Source reads frames on its own goroutine into a double buffer. The
// capture loop only ever writes the back buffer; the two are swapped under
// a lock, so a reader never sees a frame that is still being written.
type Source struct {
	cfg  Config
	open Opener

	mu    sync.RWMutex
	front *gocv.Mat
	back  *gocv.Mat
	ok    bool

	seq     atomic.Uint64
	started atomic.Bool
	running atomic.Bool

	// life serializes Start and Stop.
	life     sync.Mutex
	dev      Device
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSource creates an unstarted source.
func NewSource(cfg Config, open Opener) *Source {
	if open == nil {
		open = OpenVideoCapture(cfg)
	}
	return &Source{
		cfg:    cfg,
		open:   open,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start opens the device and begins background acquisition. If the device
// cannot be opened the error wraps ErrCameraUnavailable and every later Read
// reports not-ok. A stopped source cannot be started.
func (s *Source) Start() error {
	s.life.Lock()
	defer s.life.Unlock()

	select {
	case <-s.stopCh:
		return errors.New("camera source stopped")
	default:
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("camera source already started")
	}

	dev, err := s.open(s.cfg.Index)
	if err == nil && (dev == nil || !dev.IsOpened()) {
		err = fmt.Errorf("device %d did not open", s.cfg.Index)
	}
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		close(s.done)
		logrus.WithError(err).WithField("index", s.cfg.Index).Error("camera open failed")
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	front := gocv.NewMat()
	back := gocv.NewMat()
	s.front, s.back = &front, &back
	s.dev = dev
	s.running.Store(true)

	logrus.WithFields(logrus.Fields{
		"index":  s.cfg.Index,
		"width":  s.cfg.Width,
		"height": s.cfg.Height,
	}).Info("camera started")

	go s.captureLoop()
	return nil
}

func (s *Source) captureLoop() {
	defer close(s.done)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if ok := s.dev.Read(s.back); !ok || s.back.Empty() {
			s.mu.Lock()
			s.ok = false
			s.mu.Unlock()
			time.Sleep(retryDelay)
			continue
		}

		s.mu.Lock()
		s.front, s.back = s.back, s.front
		s.ok = true
		s.mu.Unlock()
		s.seq.Add(1)
	}
}

// Read returns a copy of the most recent frame without blocking on the
// device. ok is false before the first successful capture, after a failed
// device read until the next success, and after Stop. The caller owns the
// returned Mat and must close it.
func (s *Source) Read() (gocv.Mat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok || s.front == nil || s.front.Empty() {
		return gocv.NewMat(), false
	}
	return s.front.Clone(), true
}

// Sequence returns the number of frames captured so far. Consumers can use
// it to tell whether Read would return a new frame.
func (s *Source) Sequence() uint64 {
	return s.seq.Load()
}

// Stop ends acquisition and releases the device. It is safe to call more
// than once and before Start.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.life.Lock()
		defer s.life.Unlock()

		close(s.stopCh)
		if !s.running.Load() {
			return
		}
		<-s.done

		s.mu.Lock()
		s.ok = false
		s.front.Close()
		s.back.Close()
		s.mu.Unlock()

		if err := s.dev.Close(); err != nil {
			logrus.WithError(err).Warn("camera release failed")
		}
		s.running.Store(false)
		logrus.WithField("frames", s.seq.Load()).Info("camera stopped")
	})
}
