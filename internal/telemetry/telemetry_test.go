package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

type memSink struct {
	samples []Sample
	err     error
	closed  bool
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) Append(s Sample) error {
	if m.err != nil {
		return m.err
	}
	m.samples = append(m.samples, s)
	return nil
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func TestLoggerSkipsAbsentValues(t *testing.T) {
	sink := &memSink{}
	l := NewLogger("PSI", sink)

	require.NoError(t, l.Log(nil))
	assert.Empty(t, sink.samples)

	require.NoError(t, l.Log(ptr(42.5)))
	require.Len(t, sink.samples, 1)
	assert.Equal(t, 42.5, sink.samples[0].Value)
	assert.Equal(t, "PSI", sink.samples[0].Unit)
	assert.GreaterOrEqual(t, sink.samples[0].Elapsed, 0.0)
}

func TestLoggerElapsed(t *testing.T) {
	sink := &memSink{}
	l := NewLogger("PSI", sink)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.start = base
	l.now = func() time.Time { return base.Add(2500 * time.Millisecond) }

	require.NoError(t, l.Log(ptr(1)))
	assert.Equal(t, 2.5, sink.samples[0].Elapsed)
}

func TestLoggerFailingSinkDoesNotBlockOthers(t *testing.T) {
	bad := &memSink{err: errors.New("disk full")}
	good := &memSink{}
	l := NewLogger("PSI", bad, good)

	err := l.Log(ptr(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLogIO)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, good.samples, 1)

	require.NoError(t, l.Close())
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry_log.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	sink, err := NewCSVSink(path, "PSI")
	require.NoError(t, err)
	require.NoError(t, sink.Append(Sample{Elapsed: 1.234, Value: 50}))
	require.NoError(t, sink.Append(Sample{Elapsed: 2.5, Value: 49.96}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"Timestamp,PSI", "1.23,50.00", "2.50,49.96"}, lines)

	assert.ErrorIs(t, sink.Append(Sample{}), ErrLogIO)
}

func TestCSVSinkBadPath(t *testing.T) {
	_, err := NewCSVSink(filepath.Join(t.TempDir(), "missing", "log.csv"), "PSI")
	assert.ErrorIs(t, err, ErrLogIO)
}

func TestSQLiteSink(t *testing.T) {
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	defer sink.Close()

	now := time.Now()
	for i, v := range []float64{10, 20, 30} {
		require.NoError(t, sink.Append(Sample{
			Time:    now.Add(time.Duration(i) * time.Second),
			Elapsed: float64(i),
			Value:   v,
			Unit:    "PSI",
		}))
	}

	recent, err := sink.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 30.0, recent[0].Value)
	assert.Equal(t, 20.0, recent[1].Value)
	assert.Equal(t, "PSI", recent[0].Unit)
	assert.WithinDuration(t, now.Add(2*time.Second), recent[0].Time, time.Millisecond)
}

type fakeToken struct {
	err     error
	timeout bool
}

func (f *fakeToken) Wait() bool                     { return !f.timeout }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return !f.timeout }
func (f *fakeToken) Error() error                   { return f.err }

func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePublisher struct {
	topic    string
	retained bool
	payload  []byte
	token    *fakeToken
	gone     bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.retained = retained
	f.payload = payload.([]byte)
	return f.token
}

func (f *fakePublisher) Disconnect(uint) { f.gone = true }

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{token: &fakeToken{}}
	sink := NewMQTTSink(pub, "gauge/reading")

	require.NoError(t, sink.Append(Sample{Elapsed: 1, Value: 12.5, Unit: "PSI"}))
	assert.Equal(t, "gauge/reading", pub.topic)
	assert.True(t, pub.retained)

	var got Sample
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, 12.5, got.Value)

	pub.token = &fakeToken{err: errors.New("not connected")}
	assert.ErrorIs(t, sink.Append(Sample{}), ErrLogIO)

	pub.token = &fakeToken{timeout: true}
	assert.ErrorIs(t, sink.Append(Sample{}), ErrLogIO)

	require.NoError(t, sink.Close())
	assert.True(t, pub.gone)
}

func TestHistory(t *testing.T) {
	h := NewHistory(4, "PSI")
	assert.Equal(t, []float64{0, 0, 0, 0}, h.Values())
	assert.Equal(t, 100.0, h.YMax())

	h.Push(10)
	h.Push(20)
	assert.Equal(t, []float64{0, 0, 10, 20}, h.Values())
	assert.Equal(t, 20.0, h.Peak())

	h.Push(150)
	assert.InDelta(t, 180, h.YMax(), 1e-9)
	h.Push(160)
	assert.InDelta(t, 180, h.YMax(), 1e-9, "160 is under the ceiling")
	h.Push(200)
	assert.InDelta(t, 240, h.YMax(), 1e-9)
	assert.Equal(t, []float64{20, 150, 160, 200}, h.Values())
}

func TestHistoryRender(t *testing.T) {
	h := NewHistory(100, "PSI")
	for i := 0; i < 30; i++ {
		h.Push(float64(i))
	}
	img, err := h.Render(320, 200)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, 320, b.Dx())
	assert.Equal(t, 200, b.Dy())

	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, h.Save(path, 320, 200))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
