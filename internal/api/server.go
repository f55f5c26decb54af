// Package api exposes the gauge reader over HTTP: status and live reading,
// the needle color setting, and the calibration protocol. /ws streams
// readings and calibration progress and accepts the same actions.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gauge-telemetry/internal/app"
	"gauge-telemetry/internal/telemetry"
)

// SampleStore answers history queries; *telemetry.SQLiteSink implements it.
type SampleStore interface {
	Recent(ctx context.Context, limit int) ([]telemetry.Sample, error)
}

// Server is the HTTP collaborator of the application state.
type Server struct {
	state   *app.State
	unit    string
	router  *gin.Engine
	hub     *hub
	samples SampleStore
}

// NewServer builds the router and subscribes the websocket hub to state.
func NewServer(state *app.State, unit string) *Server {
	s := &Server{state: state, unit: unit, hub: newHub()}
	s.router = s.setupRoutes()
	s.hub.subscribe(s)
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	api := router.Group("/api")
	api.GET("/status", s.getStatus)
	api.GET("/reading", s.getReading)
	api.GET("/profile", s.getProfile)
	api.PUT("/profile/needle-color", s.setNeedleColor)
	api.GET("/samples", s.getSamples)

	cal := api.Group("/calibration")
	cal.POST("/start", s.startCalibration)
	cal.PUT("/color", s.chooseColor)
	cal.POST("/next", s.nextStep)
	cal.PUT("/range", s.submitRange)
	cal.POST("/capture", s.capture)
	cal.POST("/cancel", s.cancelCalibration)

	router.GET("/ws", s.serveWS)
	return router
}

// SetSampleStore enables GET /api/samples.
func (s *Server) SetSampleStore(store SampleStore) {
	s.samples = store
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
