package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DefaultSettingsPath is where the application looks for settings when no
// path is given.
const DefaultSettingsPath = "settings.json"

const maxSettingsSize = 1 * 1024 * 1024

// Settings is the application configuration. Every field is optional; the
// Get methods supply defaults for fields left out of the file.
type Settings struct {
	CameraIndex *int `json:"camera_index,omitempty"`
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`

	ProfilePath *string `json:"profile_path,omitempty"`

	LogFile    *string `json:"log_file,omitempty"`
	SQLitePath *string `json:"sqlite_path,omitempty"`
	MQTTBroker *string `json:"mqtt_broker,omitempty"`
	MQTTTopic  *string `json:"mqtt_topic,omitempty"`
	HTTPAddr   *string `json:"http_addr,omitempty"`
	ChartFile  *string `json:"chart_file,omitempty"`

	UnitLabel           *string  `json:"unit_label,omitempty"`
	SmoothingWindow     *int     `json:"smoothing_window,omitempty"`
	ZeroSnap            *float64 `json:"zero_snap,omitempty"`
	HistoryPoints       *int     `json:"history_points,omitempty"`
	NeedleLineTolerance *float64 `json:"needle_line_tolerance,omitempty"`
	NeedleMaskFraction  *float64 `json:"needle_mask_fraction,omitempty"`
	MinRadiusFraction   *float64 `json:"min_radius_fraction,omitempty"`
}

// LoadSettings reads settings from a JSON file. A missing file yields
// empty settings, meaning every default applies.
func LoadSettings(path string) (*Settings, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("settings file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(clean)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithField("path", clean).Debug("no settings file, using defaults")
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat settings: %v", ErrConfigIO, err)
	}
	if info.Size() > maxSettingsSize {
		return nil, fmt.Errorf("settings file too large: %d bytes (max %d)", info.Size(), maxSettingsSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: read settings: %v", ErrConfigIO, err)
	}

	s := &Settings{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Validate checks the values that are set.
func (s *Settings) Validate() error {
	if s.CameraIndex != nil && *s.CameraIndex < 0 {
		return fmt.Errorf("camera_index must be non-negative, got %d", *s.CameraIndex)
	}
	if s.FrameWidth != nil && *s.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *s.FrameWidth)
	}
	if s.FrameHeight != nil && *s.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *s.FrameHeight)
	}
	if s.SmoothingWindow != nil && *s.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *s.SmoothingWindow)
	}
	if s.ZeroSnap != nil && *s.ZeroSnap < 0 {
		return fmt.Errorf("zero_snap must be non-negative, got %f", *s.ZeroSnap)
	}
	if s.HistoryPoints != nil && *s.HistoryPoints < 2 {
		return fmt.Errorf("history_points must be at least 2, got %d", *s.HistoryPoints)
	}
	if s.NeedleLineTolerance != nil && *s.NeedleLineTolerance <= 0 {
		return fmt.Errorf("needle_line_tolerance must be positive, got %f", *s.NeedleLineTolerance)
	}
	if s.NeedleMaskFraction != nil && (*s.NeedleMaskFraction <= 0 || *s.NeedleMaskFraction > 1) {
		return fmt.Errorf("needle_mask_fraction must be in (0, 1], got %f", *s.NeedleMaskFraction)
	}
	if s.MinRadiusFraction != nil && (*s.MinRadiusFraction <= 0 || *s.MinRadiusFraction >= 0.5) {
		return fmt.Errorf("min_radius_fraction must be in (0, 0.5), got %f", *s.MinRadiusFraction)
	}
	if s.ProfilePath != nil && *s.ProfilePath == "" {
		return fmt.Errorf("profile_path must not be empty")
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetCameraIndex returns camera_index or 0.
func (s *Settings) GetCameraIndex() int { return intOr(s.CameraIndex, 0) }

// GetFrameWidth returns frame_width or 1280.
func (s *Settings) GetFrameWidth() int { return intOr(s.FrameWidth, 1280) }

// GetFrameHeight returns frame_height or 720.
func (s *Settings) GetFrameHeight() int { return intOr(s.FrameHeight, 720) }

// GetProfilePath returns profile_path or config.json.
func (s *Settings) GetProfilePath() string { return stringOr(s.ProfilePath, "config.json") }

// GetLogFile returns log_file or telemetry_log.csv. Empty disables CSV logging.
func (s *Settings) GetLogFile() string { return stringOr(s.LogFile, "telemetry_log.csv") }

// GetSQLitePath returns sqlite_path; empty disables the SQLite store.
func (s *Settings) GetSQLitePath() string { return stringOr(s.SQLitePath, "") }

// GetMQTTBroker returns mqtt_broker; empty disables MQTT publishing.
func (s *Settings) GetMQTTBroker() string { return stringOr(s.MQTTBroker, "") }

// GetMQTTTopic returns mqtt_topic or gauge/reading.
func (s *Settings) GetMQTTTopic() string { return stringOr(s.MQTTTopic, "gauge/reading") }

// GetHTTPAddr returns http_addr; empty disables the HTTP API.
func (s *Settings) GetHTTPAddr() string { return stringOr(s.HTTPAddr, "") }

// GetChartFile returns chart_file; when set, the telemetry chart is saved
// there on shutdown.
func (s *Settings) GetChartFile() string { return stringOr(s.ChartFile, "") }

// GetUnitLabel returns unit_label or PSI.
func (s *Settings) GetUnitLabel() string { return stringOr(s.UnitLabel, "PSI") }

// GetSmoothingWindow returns smoothing_window or 5.
func (s *Settings) GetSmoothingWindow() int { return intOr(s.SmoothingWindow, 5) }

// GetZeroSnap returns zero_snap or 1.2.
func (s *Settings) GetZeroSnap() float64 { return floatOr(s.ZeroSnap, 1.2) }

// GetHistoryPoints returns history_points or 100.
func (s *Settings) GetHistoryPoints() int { return intOr(s.HistoryPoints, 100) }

// GetNeedleLineTolerance returns needle_line_tolerance or 15 pixels.
func (s *Settings) GetNeedleLineTolerance() float64 { return floatOr(s.NeedleLineTolerance, 15) }

// GetNeedleMaskFraction returns needle_mask_fraction or 0.8 of the radius.
func (s *Settings) GetNeedleMaskFraction() float64 { return floatOr(s.NeedleMaskFraction, 0.8) }

// GetMinRadiusFraction returns min_radius_fraction or 0.15 of the frame width.
func (s *Settings) GetMinRadiusFraction() float64 { return floatOr(s.MinRadiusFraction, 0.15) }

// LogrusFields summarizes the effective settings for startup logging.
func (s *Settings) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"camera_index": s.GetCameraIndex(),
		"frame":        fmt.Sprintf("%dx%d", s.GetFrameWidth(), s.GetFrameHeight()),
		"profile_path": s.GetProfilePath(),
		"log_file":     s.GetLogFile(),
		"sqlite_path":  s.GetSQLitePath(),
		"mqtt_broker":  s.GetMQTTBroker(),
		"http_addr":    s.GetHTTPAddr(),
		"chart_file":   s.GetChartFile(),
	}
}
