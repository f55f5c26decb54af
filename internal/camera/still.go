package camera

import (
	"sync"

	"gocv.io/x/gocv"
)

// Still serves one fixed frame forever. It stands in for a live source when
// processing a single image.
type Still struct {
	mu     sync.RWMutex
	frame  gocv.Mat
	closed bool
}

// NewStill takes ownership of frame.
func NewStill(frame gocv.Mat) *Still {
	return &Still{frame: frame}
}

// Read returns a copy of the frame; ok is false if it is empty or closed.
func (s *Still) Read() (gocv.Mat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.frame.Empty() {
		return gocv.NewMat(), false
	}
	return s.frame.Clone(), true
}

// Sequence is always 1: the frame never changes.
func (s *Still) Sequence() uint64 { return 1 }

// Close releases the frame.
func (s *Still) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.frame.Close()
}
