package camera

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeDevice produces solid frames whose blue channel counts reads, failing
// every read once fail is set.
type fakeDevice struct {
	reads  atomic.Int64
	fail   atomic.Bool
	closed atomic.Bool
}

func (d *fakeDevice) Read(m *gocv.Mat) bool {
	if d.fail.Load() {
		return false
	}
	n := d.reads.Add(1)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(n%256), 0, 0, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(m)
	time.Sleep(time.Millisecond)
	return true
}

func (d *fakeDevice) IsOpened() bool { return true }

func (d *fakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

func openerFor(d Device) Opener {
	return func(int) (Device, error) { return d, nil }
}

func waitFrames(t *testing.T, s *Source, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Sequence() >= n }, 2*time.Second, 5*time.Millisecond)
}

func TestSourceReadBeforeStart(t *testing.T) {
	s := NewSource(Config{}, openerFor(&fakeDevice{}))
	m, ok := s.Read()
	defer m.Close()
	assert.False(t, ok)
	s.Stop()
}

func TestSourceCapturesFrames(t *testing.T) {
	dev := &fakeDevice{}
	s := NewSource(Config{Index: 2}, openerFor(dev))
	require.NoError(t, s.Start())
	defer s.Stop()

	waitFrames(t, s, 3)

	m, ok := s.Read()
	defer m.Close()
	require.True(t, ok)
	assert.Equal(t, 8, m.Rows())
	assert.Equal(t, 8, m.Cols())

	assert.Error(t, s.Start(), "second start")
}

func TestSourceConcurrentReaders(t *testing.T) {
	s := NewSource(Config{}, openerFor(&fakeDevice{}))
	require.NoError(t, s.Start())
	defer s.Stop()
	waitFrames(t, s, 1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m, ok := s.Read()
				if ok {
					// Every channel-0 byte of a frame comes from a single write.
					first := m.GetVecbAt(0, 0)[0]
					last := m.GetVecbAt(7, 7)[0]
					assert.Equal(t, first, last)
				}
				m.Close()
			}
		}()
	}
	wg.Wait()
}

func TestSourceFailedReads(t *testing.T) {
	dev := &fakeDevice{}
	s := NewSource(Config{}, openerFor(dev))
	require.NoError(t, s.Start())
	defer s.Stop()
	waitFrames(t, s, 1)

	dev.fail.Store(true)
	require.Eventually(t, func() bool {
		m, ok := s.Read()
		m.Close()
		return !ok
	}, time.Second, 5*time.Millisecond)

	dev.fail.Store(false)
	require.Eventually(t, func() bool {
		m, ok := s.Read()
		m.Close()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSourceStopReleasesDevice(t *testing.T) {
	dev := &fakeDevice{}
	s := NewSource(Config{}, openerFor(dev))
	require.NoError(t, s.Start())
	waitFrames(t, s, 1)

	s.Stop()
	s.Stop()
	assert.True(t, dev.closed.Load())

	m, ok := s.Read()
	defer m.Close()
	assert.False(t, ok)
}

func TestSourceStartAfterStop(t *testing.T) {
	opened := false
	dev := &fakeDevice{}
	s := NewSource(Config{}, func(int) (Device, error) {
		opened = true
		return dev, nil
	})

	s.Stop()
	require.Error(t, s.Start())
	assert.False(t, opened, "a stopped source must not open the device")

	m, ok := s.Read()
	defer m.Close()
	assert.False(t, ok)
	s.Stop()
}

func TestSourceOpenFailure(t *testing.T) {
	s := NewSource(Config{Index: 7}, func(int) (Device, error) {
		return nil, errors.New("no such device")
	})

	err := s.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCameraUnavailable)

	for i := 0; i < 3; i++ {
		m, ok := s.Read()
		assert.False(t, ok)
		m.Close()
	}
	s.Stop()
}

func TestStill(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 4, 4, gocv.MatTypeCV8UC3)
	s := NewStill(frame)

	for i := 0; i < 2; i++ {
		m, ok := s.Read()
		require.True(t, ok)
		assert.Equal(t, uint8(30), m.GetVecbAt(1, 1)[2])
		m.Close()
	}

	require.NoError(t, s.Close())
	m, ok := s.Read()
	defer m.Close()
	assert.False(t, ok)
}
