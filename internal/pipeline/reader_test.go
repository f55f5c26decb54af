package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/camera"
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/pkg/colorutil"
)

type memSaver struct {
	saved []gauge.Profile
	err   error
}

func (m *memSaver) Save(p gauge.Profile) error {
	m.saved = append(m.saved, p)
	return m.err
}

func testProfile() gauge.Profile {
	return gauge.Profile{NeedleColor: gauge.NeedleRed, MinAngle: 225, MaxAngle: 315, MinValue: 0, MaxValue: 100}
}

// needleUp draws a dial of radius 200 at (320,240) with a red needle
// pointing straight up.
func needleUp() gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 480, 640, gocv.MatTypeCV8UC3)
	gocv.Circle(&frame, image.Pt(320, 240), 200, colorutil.Black, 3)
	gocv.Line(&frame, image.Pt(320, 240), image.Pt(320, 60), colorutil.Red, 5)
	return frame
}

func TestProcessEndToEnd(t *testing.T) {
	frame := needleUp()
	defer frame.Close()

	r := NewReader(testProfile(), nil, nil, DefaultOptions())
	reading := r.Process(frame)
	defer reading.Close()

	require.NotNil(t, reading.Circle)
	assert.InDelta(t, 320, reading.Circle.X, 4)
	assert.InDelta(t, 240, reading.Circle.Y, 4)

	require.NotNil(t, reading.Needle)
	require.NotNil(t, reading.RawAngle)
	assert.InDelta(t, 90, *reading.RawAngle, 2)

	// 225 clockwise to 315 spans 270 degrees; straight up is 135 of them.
	require.NotNil(t, reading.Value)
	assert.InDelta(t, 50, *reading.Value, 1)
	assert.Equal(t, calibration.StateIdle, reading.Calibration)

	assert.False(t, reading.Annotated.Empty())
	assert.Equal(t, frame.Rows(), reading.Annotated.Rows())
}

func TestProcessNoGauge(t *testing.T) {
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer blank.Close()

	r := NewReader(testProfile(), nil, nil, DefaultOptions())
	reading := r.Process(blank)
	defer reading.Close()

	assert.Nil(t, reading.Circle)
	assert.Nil(t, reading.RawAngle)
	assert.Nil(t, reading.Value)
	assert.False(t, reading.Annotated.Empty())
}

func TestProcessWhileCalibrating(t *testing.T) {
	frame := needleUp()
	defer frame.Close()

	m := calibration.NewMachine()
	r := NewReader(testProfile(), m, nil, DefaultOptions())

	require.NoError(t, m.Start(r.Profile()))
	require.NoError(t, m.Next())
	require.NoError(t, m.Submit("0", "100"))

	reading := r.Process(frame)
	defer reading.Close()

	assert.Equal(t, calibration.StateCaptureMin, reading.Calibration)
	require.NotNil(t, reading.RawAngle)
	assert.Nil(t, reading.Value, "values are suspended during calibration")

	require.NoError(t, m.CaptureLast())
	s, ok := m.Session()
	require.True(t, ok)
	assert.InDelta(t, 90, s.MinAngle, 2)
}

func TestCalibrationEvents(t *testing.T) {
	saver := &memSaver{}
	m := calibration.NewMachine()
	r := NewReader(testProfile(), m, saver, DefaultOptions())

	start := func() {
		require.NoError(t, m.Start(r.Profile()))
		require.NoError(t, m.Choose(gauge.NeedleBlack))
		require.NoError(t, m.Next())
		require.NoError(t, m.Submit("0", "60"))
		require.NoError(t, m.Capture(200))
	}

	t.Run("cancel keeps committed profile", func(t *testing.T) {
		start()
		r.mu.RLock()
		require.NotNil(t, r.preview)
		assert.Equal(t, 200.0, r.preview.MinAngle)
		r.mu.RUnlock()

		m.Cancel()
		assert.Equal(t, testProfile(), r.Profile())
		r.mu.RLock()
		assert.Nil(t, r.preview)
		r.mu.RUnlock()
		assert.Empty(t, saver.saved)
	})

	t.Run("commit persists", func(t *testing.T) {
		start()
		require.NoError(t, m.Capture(340))

		want := gauge.Profile{NeedleColor: gauge.NeedleBlack, MinAngle: 200, MaxAngle: 340, MinValue: 0, MaxValue: 60}
		assert.Equal(t, want, r.Profile())
		require.Len(t, saver.saved, 1)
		assert.Equal(t, want, saver.saved[0])
	})
}

func TestSaveFailureKeepsProfile(t *testing.T) {
	saver := &memSaver{err: errors.New("disk full")}
	r := NewReader(testProfile(), nil, saver, DefaultOptions())

	err := r.SetNeedleColor(gauge.NeedleBlue)
	assert.Error(t, err)
	assert.Equal(t, gauge.NeedleBlue, r.Profile().NeedleColor)
}

func TestRunReprocessesLatestFrame(t *testing.T) {
	still := camera.NewStill(needleUp())
	defer still.Close()

	r := NewReader(testProfile(), nil, nil, DefaultOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var values []float64
	err := r.Run(ctx, still, func(rd Reading) {
		if rd.Value != nil {
			values = append(values, *rd.Value)
		}
		if len(values) == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, values, 3)
	assert.Equal(t, values[0], values[2])
}

type emptySource struct{ reads int }

func (e *emptySource) Read() (gocv.Mat, bool) {
	e.reads++
	return gocv.NewMat(), false
}

func TestRunWithoutFrames(t *testing.T) {
	src := &emptySource{}
	r := NewReader(testProfile(), nil, nil, DefaultOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	called := false
	err := r.Run(ctx, src, func(Reading) { called = true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	assert.Greater(t, src.reads, 1)
}
