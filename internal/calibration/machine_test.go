package calibration

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauge-telemetry/internal/gauge"
)

type recorder struct {
	events []Event
}

func (r *recorder) listen(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) profiles() []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == EventProfileUpdated {
			out = append(out, ev)
		}
	}
	return out
}

func newMachine(t *testing.T) (*Machine, *recorder) {
	t.Helper()
	m := NewMachine()
	r := &recorder{}
	m.On(r.listen)
	return m, r
}

func toCaptureMin(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.Start(gauge.DefaultProfile()))
	require.NoError(t, m.Choose(gauge.NeedleBlue))
	require.NoError(t, m.Next())
	require.NoError(t, m.Submit("0", "160"))
	require.Equal(t, StateCaptureMin, m.State())
}

func TestStartFromIdle(t *testing.T) {
	m, r := newMachine(t)
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Start(gauge.DefaultProfile()))
	assert.Equal(t, StateSelectColor, m.State())

	s, ok := m.Session()
	require.True(t, ok)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, gauge.NeedleRed, s.NeedleColor)
	assert.Equal(t, 100.0, s.MaxValue)

	require.Len(t, r.events, 1)
	assert.Equal(t, EventStateChanged, r.events[0].Kind)
	assert.Equal(t, StateIdle, r.events[0].From)
	assert.Equal(t, StateSelectColor, r.events[0].To)

	assert.ErrorIs(t, m.Start(gauge.DefaultProfile()), ErrSessionActive)
}

func TestChooseStaysInSelectColor(t *testing.T) {
	m, _ := newMachine(t)
	require.NoError(t, m.Start(gauge.DefaultProfile()))

	require.NoError(t, m.Choose(gauge.NeedleBlack))
	require.NoError(t, m.Choose(gauge.NeedleBlue))
	assert.Equal(t, StateSelectColor, m.State())

	assert.ErrorIs(t, m.Choose(gauge.NeedleColor(9)), ErrInvalidInput)

	s, _ := m.Session()
	assert.Equal(t, gauge.NeedleBlue, s.NeedleColor)
}

func TestSubmitRejectsNonNumeric(t *testing.T) {
	m, r := newMachine(t)
	require.NoError(t, m.Start(gauge.DefaultProfile()))
	require.NoError(t, m.Next())
	before := len(r.events)

	for _, in := range [][2]string{{"abc", "100"}, {"0", ""}, {"NaN", "5"}, {"1", "inf"}} {
		err := m.Submit(in[0], in[1])
		assert.ErrorIs(t, err, ErrInvalidInput, "submit %q", in)
		assert.Equal(t, StateInputRange, m.State())
	}
	assert.Len(t, r.events, before)

	require.NoError(t, m.Submit(" -10 ", "2.5e2"))
	assert.Equal(t, StateCaptureMin, m.State())
	s, _ := m.Session()
	assert.Equal(t, -10.0, s.MinValue)
	assert.Equal(t, 250.0, s.MaxValue)
}

func TestActionsInWrongState(t *testing.T) {
	m, _ := newMachine(t)

	assert.ErrorIs(t, m.Next(), ErrWrongState)
	assert.ErrorIs(t, m.Submit("1", "2"), ErrWrongState)
	assert.ErrorIs(t, m.Capture(10), ErrWrongState)
	assert.ErrorIs(t, m.Choose(gauge.NeedleRed), ErrWrongState)

	require.NoError(t, m.Start(gauge.DefaultProfile()))
	assert.ErrorIs(t, m.Capture(10), ErrWrongState)
	assert.ErrorIs(t, m.Submit("1", "2"), ErrWrongState)

	require.NoError(t, m.Next())
	assert.ErrorIs(t, m.Next(), ErrWrongState, "no step is revisited")
	assert.ErrorIs(t, m.Choose(gauge.NeedleRed), ErrWrongState)
}

func TestCaptureCommitsExactBounds(t *testing.T) {
	m, r := newMachine(t)
	toCaptureMin(t, m)

	require.NoError(t, m.Capture(217.6))
	assert.Equal(t, StateCaptureMax, m.State())

	provisional := r.profiles()
	require.Len(t, provisional, 1)
	assert.False(t, provisional[0].Final)
	assert.Equal(t, 217.6, provisional[0].Profile.MinAngle)
	assert.Equal(t, gauge.DefaultProfile().MaxAngle, provisional[0].Profile.MaxAngle)

	require.NoError(t, m.Capture(310.6))
	assert.Equal(t, StateIdle, m.State())
	_, open := m.Session()
	assert.False(t, open)

	updates := r.profiles()
	require.Len(t, updates, 2)
	final := updates[1]
	assert.True(t, final.Final)

	want := gauge.Profile{
		NeedleColor: gauge.NeedleBlue,
		MinAngle:    217.6,
		MaxAngle:    310.6,
		MinValue:    0,
		MaxValue:    160,
	}
	if diff := cmp.Diff(want, final.Profile); diff != "" {
		t.Errorf("committed profile mismatch (-want +got):\n%s", diff)
	}

	last := r.events[len(r.events)-1]
	assert.Equal(t, EventStateChanged, last.Kind)
	assert.Equal(t, StateCaptureMax, last.From)
	assert.Equal(t, StateIdle, last.To)
}

func TestCaptureNormalizesAngle(t *testing.T) {
	m, r := newMachine(t)
	toCaptureMin(t, m)

	require.NoError(t, m.Capture(-90))
	assert.Equal(t, 270.0, r.profiles()[0].Profile.MinAngle)
	assert.ErrorIs(t, m.Capture(nan()), ErrInvalidInput)
	assert.Equal(t, StateCaptureMax, m.State())
}

func TestCaptureLast(t *testing.T) {
	m, r := newMachine(t)

	m.Observe(12)
	assert.ErrorIs(t, m.CaptureLast(), ErrWrongState)

	toCaptureMin(t, m)
	assert.ErrorIs(t, m.CaptureLast(), ErrNoAngle)

	m.Observe(200)
	m.Observe(201.5)
	require.NoError(t, m.CaptureLast())
	assert.Equal(t, StateCaptureMax, m.State())

	m.Observe(330)
	require.NoError(t, m.CaptureLast())

	final := r.profiles()[1].Profile
	assert.Equal(t, 201.5, final.MinAngle)
	assert.Equal(t, 330.0, final.MaxAngle)
}

func TestCaptureLastConcurrent(t *testing.T) {
	for round := 0; round < 50; round++ {
		m := NewMachine()
		var mu sync.Mutex
		var finals []gauge.Profile
		m.On(func(ev Event) {
			if ev.Kind == EventProfileUpdated && ev.Final {
				mu.Lock()
				finals = append(finals, ev.Profile)
				mu.Unlock()
			}
		})
		toCaptureMin(t, m)
		m.Observe(205)

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- m.CaptureLast()
			}()
		}
		wg.Wait()
		close(errs)

		ok := 0
		for err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, ErrWrongState)
		}
		assert.Equal(t, 2, ok, "one floor and one ceiling capture")
		assert.Equal(t, StateIdle, m.State())
		require.Len(t, finals, 1)
		assert.Equal(t, 205.0, finals[0].MinAngle)
		assert.Equal(t, 205.0, finals[0].MaxAngle)
	}
}

func TestCaptureLastWrongStates(t *testing.T) {
	m, _ := newMachine(t)
	require.NoError(t, m.Start(gauge.DefaultProfile()))
	m.Observe(90)
	assert.ErrorIs(t, m.CaptureLast(), ErrWrongState, "angle known but still choosing a color")
	require.NoError(t, m.Next())
	assert.ErrorIs(t, m.CaptureLast(), ErrWrongState)
	assert.Equal(t, StateInputRange, m.State())
}

func TestCancelFromAnyState(t *testing.T) {
	steps := map[State]func(*testing.T, *Machine){
		StateSelectColor: func(t *testing.T, m *Machine) {
			require.NoError(t, m.Start(gauge.DefaultProfile()))
		},
		StateInputRange: func(t *testing.T, m *Machine) {
			require.NoError(t, m.Start(gauge.DefaultProfile()))
			require.NoError(t, m.Next())
		},
		StateCaptureMin: toCaptureMin,
		StateCaptureMax: func(t *testing.T, m *Machine) {
			toCaptureMin(t, m)
			require.NoError(t, m.Capture(200))
		},
	}

	for state, reach := range steps {
		t.Run(string(state), func(t *testing.T) {
			m, r := newMachine(t)
			reach(t, m)
			require.Equal(t, state, m.State())

			m.Cancel()
			finals := 0
			for _, ev := range r.profiles() {
				if ev.Final {
					finals++
				}
			}
			assert.Equal(t, StateIdle, m.State())
			_, open := m.Session()
			assert.False(t, open)

			last := r.events[len(r.events)-1]
			assert.Equal(t, ActionCancel, last.Action)
			assert.Equal(t, state, last.From)
			assert.Equal(t, 0, finals, "cancel must not commit")

			// A new session can start afterwards.
			assert.NoError(t, m.Start(gauge.DefaultProfile()))
		})
	}

	t.Run("idle", func(t *testing.T) {
		m, r := newMachine(t)
		m.Cancel()
		assert.Empty(t, r.events)
	})
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrInvalidInput, ErrWrongState))
	assert.False(t, errors.Is(ErrNoAngle, ErrWrongState))
}

func TestPrompt(t *testing.T) {
	for _, s := range []State{StateIdle, StateSelectColor, StateInputRange, StateCaptureMin, StateCaptureMax} {
		assert.NotEmpty(t, Prompt(s))
		assert.NotEmpty(t, ButtonLabel(s))
	}
	assert.Contains(t, Prompt(StateCaptureMin), "MINIMUM")
	assert.Contains(t, Prompt(StateCaptureMax), "MAXIMUM")
	assert.True(t, StateCaptureMax.Active())
	assert.False(t, StateIdle.Active())
}

func nan() float64 { return math.NaN() }
