package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot/vg"

	"gauge-telemetry/internal/api"
	"gauge-telemetry/internal/app"
	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/camera"
	"gauge-telemetry/internal/config"
	"gauge-telemetry/internal/ocr"
	"gauge-telemetry/internal/pipeline"
	"gauge-telemetry/internal/telemetry"
	"gauge-telemetry/ui/dashboard"
)

// watchInterval is how often the profile file is checked for edits.
const watchInterval = 2 * time.Second

func readerOptions(s *config.Settings) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Params = opts.Params.
		WithLineTolerance(s.GetNeedleLineTolerance()).
		WithROIFraction(s.GetNeedleMaskFraction()).
		WithCircleSensitivity(s.GetMinRadiusFraction())
	opts.Unit = s.GetUnitLabel()
	opts.SmoothingWindow = s.GetSmoothingWindow()
	opts.ZeroSnap = s.GetZeroSnap()
	return opts
}

// openSinks adds every configured telemetry sink to logger and returns the
// SQLite store, if any. A sink that cannot be opened is skipped; telemetry
// is never a reason to stop reading.
func openSinks(s *config.Settings, logger *telemetry.Logger) *telemetry.SQLiteSink {
	unit := s.GetUnitLabel()
	var store *telemetry.SQLiteSink

	if path := s.GetLogFile(); path != "" {
		if csv, err := telemetry.NewCSVSink(path, unit); err != nil {
			logrus.WithError(err).Error("CSV telemetry disabled")
		} else {
			logger.Add(csv)
		}
	}
	if path := s.GetSQLitePath(); path != "" {
		if db, err := telemetry.OpenSQLite(path); err != nil {
			logrus.WithError(err).Error("SQLite telemetry disabled")
		} else {
			logger.Add(db)
			store = db
		}
	}
	if broker := s.GetMQTTBroker(); broker != "" {
		clientID := "gauge-telemetry-" + uuid.NewString()[:8]
		if mq, err := telemetry.ConnectMQTT(broker, clientID, s.GetMQTTTopic()); err != nil {
			logrus.WithError(err).Error("MQTT telemetry disabled")
		} else {
			logger.Add(mq)
		}
	}
	return store
}

func runLive(parent context.Context, headless bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	logrus.WithFields(settings.LogrusFields()).Info("settings loaded")

	store, err := config.OpenStore(settings.GetProfilePath())
	if err != nil {
		logrus.WithError(err).Warn("profile file unreadable, using defaults")
	}
	profiles := config.NewProfiles(store)
	profile := profiles.LoadOrDefault()
	logrus.WithField("profile", profile).Info("calibration profile loaded")

	unit := settings.GetUnitLabel()
	reader := pipeline.NewReader(profile, calibration.NewMachine(), profiles, readerOptions(settings))

	camCfg := camera.Config{
		Index:  settings.GetCameraIndex(),
		Width:  settings.GetFrameWidth(),
		Height: settings.GetFrameHeight(),
	}
	src := camera.NewSource(camCfg, camera.OpenVideoCapture(camCfg))
	if err := src.Start(); err != nil {
		return err
	}
	defer src.Stop()

	logger := telemetry.NewLogger(unit)
	samples := openSinks(settings, logger)
	defer func() {
		if err := logger.Close(); err != nil {
			logrus.WithError(err).Warn("telemetry sinks not closed cleanly")
		}
	}()
	history := telemetry.NewHistory(settings.GetHistoryPoints(), unit)
	if path := settings.GetChartFile(); path != "" {
		defer func() {
			if err := history.Save(path, 8*vg.Inch, 4*vg.Inch); err != nil {
				logrus.WithError(err).WithField("path", path).Warn("telemetry chart not saved")
			}
		}()
	}

	opts := app.Options{Logger: logger, History: history, Frames: src}
	if sr, err := ocr.NewScaleReader(); err != nil {
		logrus.WithError(err).Warn("dial scale OCR unavailable")
	} else {
		defer sr.Close()
		opts.Scale = sr
	}
	state := app.NewState(reader, opts)

	watcher := app.WatchProfile(state, profiles, watchInterval)
	watcher.Start()
	defer watcher.Stop()

	if addr := settings.GetHTTPAddr(); addr != "" {
		srv := api.NewServer(state, unit)
		if samples != nil {
			srv.SetSampleStore(samples)
		}
		go func() {
			if err := srv.Run(ctx, addr); err != nil {
				logrus.WithError(err).Error("http server stopped")
			}
		}()
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- reader.Run(ctx, src, state.Consume) }()

	if headless {
		<-ctx.Done()
		<-loopDone
		return nil
	}

	fyneApp := fyneapp.NewWithID("io.gauge-telemetry")
	win := dashboard.New(fyneApp, state, history, unit)
	go func() {
		<-ctx.Done()
		fyneApp.Quit()
	}()
	win.ShowAndRun()

	stop()
	<-loopDone
	return nil
}
