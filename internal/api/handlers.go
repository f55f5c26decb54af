package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gauge-telemetry/internal/app"
	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/internal/ocr"
	"gauge-telemetry/internal/telemetry"
	"gauge-telemetry/internal/version"
	"gauge-telemetry/pkg/geometry"
)

type readingResponse struct {
	Time        time.Time         `json:"time"`
	Value       *float64          `json:"value"`
	Angle       *float64          `json:"angle"`
	Unit        string            `json:"unit"`
	Circle      *geometry.Circle  `json:"circle,omitempty"`
	Calibration calibration.State `json:"calibration"`
}

type statusResponse struct {
	Version     string               `json:"version"`
	Unit        string               `json:"unit"`
	Profile     gauge.Profile        `json:"profile"`
	Calibration calibration.State    `json:"calibration"`
	Prompt      string               `json:"prompt,omitempty"`
	Button      string               `json:"button,omitempty"`
	Session     *calibration.Session `json:"session,omitempty"`
	ScaleHint   *ocr.ScaleHint       `json:"scale_hint,omitempty"`
	Frames      uint64               `json:"frames"`
	Reading     *readingResponse     `json:"reading,omitempty"`
}

type colorRequest struct {
	Color *gauge.NeedleColor `json:"color"`
}

func (r colorRequest) color() (gauge.NeedleColor, error) {
	if r.Color == nil {
		return 0, errors.New("color is required")
	}
	return *r.Color, nil
}

// rangeRequest carries the operator's text as typed; parsing is the
// calibration machine's job.
type rangeRequest struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type captureRequest struct {
	Angle *float64 `json:"angle"`
}

func (s *Server) readingFrom(snap app.Snapshot) *readingResponse {
	return &readingResponse{
		Time:        snap.Time,
		Value:       snap.Value,
		Angle:       snap.RawAngle,
		Unit:        s.unit,
		Circle:      snap.Circle,
		Calibration: snap.Calibration,
	}
}

func (s *Server) status() statusResponse {
	st := statusResponse{
		Version:     version.Version,
		Unit:        s.unit,
		Profile:     s.state.Profile(),
		Calibration: calibration.StateIdle,
		Frames:      s.state.Frames(),
	}
	if sess, ok := s.state.Machine().Session(); ok {
		st.Calibration = sess.State
		st.Session = &sess
	}
	st.Prompt = calibration.Prompt(st.Calibration)
	st.Button = calibration.ButtonLabel(st.Calibration)
	if hint, ok := s.state.ScaleHint(); ok {
		st.ScaleHint = &hint
	}
	if snap, ok := s.state.Latest(); ok {
		st.Reading = s.readingFrom(snap)
	}
	return st
}

// statusCode maps domain errors onto HTTP statuses.
func statusCode(err error) int {
	switch {
	case errors.Is(err, calibration.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, calibration.ErrWrongState),
		errors.Is(err, calibration.ErrSessionActive),
		errors.Is(err, calibration.ErrNoAngle):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, gin.H{"error": err.Error()})
	_ = c.Error(err)
	c.Abort()
}

// respond answers a calibration action with the resulting status.
func (s *Server) respond(c *gin.Context, err error) {
	if err != nil {
		fail(c, statusCode(err), err)
		return
	}
	c.IndentedJSON(http.StatusOK, s.status())
}

func (s *Server) getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.status())
}

func (s *Server) getReading(c *gin.Context) {
	snap, ok := s.state.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.IndentedJSON(http.StatusOK, s.readingFrom(snap))
}

const (
	defaultSampleLimit = 100
	maxSampleLimit     = 5000
)

// getSamples returns logged samples, newest first.
func (s *Server) getSamples(c *gin.Context) {
	if s.samples == nil {
		fail(c, http.StatusNotFound, errors.New("no sample store configured"))
		return
	}
	limit := defaultSampleLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxSampleLimit)
	}
	samples, err := s.samples.Recent(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if samples == nil {
		samples = []telemetry.Sample{}
	}
	c.IndentedJSON(http.StatusOK, samples)
}

func (s *Server) getProfile(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.state.Profile())
}

func (s *Server) setNeedleColor(c *gin.Context) {
	color, err := bindColor(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.state.SetNeedleColor(color); err != nil {
		// The color is in effect even though it was not saved.
		c.IndentedJSON(statusCode(err), gin.H{"error": err.Error(), "profile": s.state.Profile()})
		_ = c.Error(err)
		return
	}
	c.IndentedJSON(http.StatusOK, s.state.Profile())
}

func bindColor(c *gin.Context) (gauge.NeedleColor, error) {
	var req colorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, err
	}
	return req.color()
}

func (s *Server) startCalibration(c *gin.Context) {
	s.respond(c, s.state.Machine().Start(s.state.Profile()))
}

func (s *Server) chooseColor(c *gin.Context) {
	color, err := bindColor(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.respond(c, s.state.Machine().Choose(color))
}

func (s *Server) nextStep(c *gin.Context) {
	s.respond(c, s.state.Machine().Next())
}

func (s *Server) submitRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.respond(c, s.state.Machine().Submit(req.Min, req.Max))
}

// capture records an explicit angle, or the last observed one when the
// body is empty.
func (s *Server) capture(c *gin.Context) {
	var req captureRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.Angle != nil {
		s.respond(c, s.state.Machine().Capture(*req.Angle))
		return
	}
	s.respond(c, s.state.Machine().CaptureLast())
}

func (s *Server) cancelCalibration(c *gin.Context) {
	s.state.Machine().Cancel()
	s.respond(c, nil)
}
