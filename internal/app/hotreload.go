package app

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gauge-telemetry/internal/config"
)

// FileWatcher polls a file's modification time and invokes a callback when
// it changes. A missing file counts as the zero time, so creating it also
// triggers the callback.
type FileWatcher struct {
	path          string
	checkInterval time.Duration

	mu       sync.Mutex
	baseline time.Time
	stopCh   chan struct{}
	onChange func()
}

// NewFileWatcher creates a watcher for path, using its current mtime as the
// baseline.
func NewFileWatcher(path string, checkInterval time.Duration) *FileWatcher {
	return &FileWatcher{
		path:          path,
		checkInterval: checkInterval,
		baseline:      modTime(path),
	}
}

// OnChange sets the callback to invoke when the file changes. The callback
// is called from a background goroutine.
func (w *FileWatcher) OnChange(callback func()) {
	w.mu.Lock()
	w.onChange = callback
	w.mu.Unlock()
}

// Start begins watching in a background goroutine.
func (w *FileWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	go w.watchLoop(w.stopCh)
}

// Stop stops the watcher goroutine.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *FileWatcher) watchLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check compares the file's mtime with the baseline and runs the callback
// when it moved. It reports whether a change was seen.
func (w *FileWatcher) Check() bool {
	current := modTime(w.path)

	w.mu.Lock()
	if current.Equal(w.baseline) {
		w.mu.Unlock()
		return false
	}
	w.baseline = current
	cb := w.onChange
	w.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// ResetBaseline adopts the current mtime without firing the callback.
func (w *FileWatcher) ResetBaseline() {
	w.mu.Lock()
	w.baseline = modTime(w.path)
	w.mu.Unlock()
}

// Path returns the watched file.
func (w *FileWatcher) Path() string {
	return w.path
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// WatchProfile reloads the calibration profile into s whenever its file is
// edited. Unreadable or incomplete files are ignored and the running
// profile stays in effect. The returned watcher is not started.
func WatchProfile(s *State, profiles *config.Profiles, checkInterval time.Duration) *FileWatcher {
	w := NewFileWatcher(profiles.Store().Path(), checkInterval)
	w.OnChange(func() {
		if err := profiles.Store().Reload(); err != nil {
			logrus.WithError(err).Warn("profile file changed but could not be read")
			return
		}
		p, ok := profiles.Load()
		if !ok {
			logrus.WithField("path", w.Path()).Warn("profile file changed but is incomplete")
			return
		}
		s.ReloadProfile(p)
	})
	return w
}
