// Package dashboard is the desktop window: the live annotated frame, the
// current value, the telemetry chart and the calibration controls.
package dashboard

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"gauge-telemetry/internal/app"
	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/internal/ocr"
	"gauge-telemetry/internal/telemetry"
	"gauge-telemetry/internal/version"
)

const (
	frameInterval = 33 * time.Millisecond
	chartInterval = 500 * time.Millisecond
	chartWidth    = 640
	chartHeight   = 240
)

// Window is the dashboard window.
type Window struct {
	fyne.Window
	state   *app.State
	history *telemetry.History
	unit    string

	live       *fynecanvas.Image
	chart      *fynecanvas.Image
	valueLabel *widget.Label
	angleLabel *widget.Label
	peakLabel  *widget.Label
	statusBar  *widget.Label

	profileLabel  *widget.Label
	profileColor  *widget.Select
	prompt        *widget.Label
	primaryBtn    *widget.Button
	cancelBtn     *widget.Button
	calColor      *widget.Select
	minEntry      *widget.Entry
	maxEntry      *widget.Entry
	rangeBox      *fyne.Container
	syncingColors bool

	mu        sync.Mutex
	lastFrame time.Time
	stop      chan struct{}
}

// New creates the dashboard window. history may be nil to hide the chart.
func New(fyneApp fyne.App, state *app.State, history *telemetry.History, unit string) *Window {
	fyneApp.Settings().SetTheme(&app.Theme{})
	win := fyneApp.NewWindow("Gauge Telemetry " + version.Version)

	w := &Window{
		Window:  win,
		state:   state,
		history: history,
		unit:    unit,
		stop:    make(chan struct{}),
	}
	w.setupUI()
	w.setupEventHandlers()
	w.applyCalibration(state.Machine().State())
	w.showProfile(state.Profile())

	win.SetOnClosed(func() { close(w.stop) })
	if history != nil {
		go w.chartLoop()
	}
	return w
}

func (w *Window) setupUI() {
	w.live = fynecanvas.NewImageFromImage(nil)
	w.live.FillMode = fynecanvas.ImageFillContain
	w.live.SetMinSize(fyne.NewSize(640, 360))

	w.chart = fynecanvas.NewImageFromImage(nil)
	w.chart.FillMode = fynecanvas.ImageFillContain
	w.chart.SetMinSize(fyne.NewSize(chartWidth/2, chartHeight/2))

	w.valueLabel = widget.NewLabelWithStyle(formatValue(nil, w.unit), fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	w.angleLabel = widget.NewLabel(formatAngle(nil))
	w.peakLabel = widget.NewLabel("")
	w.statusBar = widget.NewLabel("Waiting for camera...")

	content := container.NewBorder(
		nil,
		container.NewPadded(w.statusBar),
		nil,
		w.createSidePanel(),
		container.NewVSplit(w.live, w.chart),
	)
	w.SetContent(content)
	w.Resize(fyne.NewSize(1100, 720))
}

func (w *Window) createSidePanel() fyne.CanvasObject {
	w.profileLabel = widget.NewLabel("")
	w.profileLabel.Wrapping = fyne.TextWrapWord
	w.profileColor = widget.NewSelect(colorNames(), func(selected string) {
		if w.syncingColors {
			return
		}
		c, err := gauge.ParseNeedleColor(selected)
		if err != nil {
			return
		}
		if err := w.state.SetNeedleColor(c); err != nil {
			dialog.ShowError(err, w.Window)
		}
	})

	w.prompt = widget.NewLabel("")
	w.prompt.Wrapping = fyne.TextWrapWord
	w.calColor = widget.NewSelect(colorNames(), nil)
	w.minEntry = widget.NewEntry()
	w.minEntry.SetPlaceHolder("minimum")
	w.maxEntry = widget.NewEntry()
	w.maxEntry.SetPlaceHolder("maximum")
	w.rangeBox = container.NewGridWithColumns(2, w.minEntry, w.maxEntry)

	w.primaryBtn = widget.NewButton("", w.onPrimary)
	w.primaryBtn.Importance = widget.HighImportance
	w.cancelBtn = widget.NewButton("Cancel", func() {
		w.state.Machine().Cancel()
	})

	return container.NewVBox(
		w.valueLabel,
		w.angleLabel,
		w.peakLabel,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Profile", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		w.profileLabel,
		container.NewHBox(widget.NewLabel("Needle:"), w.profileColor),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Calibration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		w.prompt,
		w.calColor,
		w.rangeBox,
		container.NewGridWithColumns(2, w.primaryBtn, w.cancelBtn),
	)
}

func (w *Window) onPrimary() {
	m := w.state.Machine()
	if m.State() == calibration.StateIdle {
		w.calColor.SetSelected(w.state.Profile().NeedleColor.String())
		w.minEntry.SetText("")
		w.maxEntry.SetText("")
	}
	err := primaryAction(m, w.state.Profile(), w.calColor.Selected, w.minEntry.Text, w.maxEntry.Text)
	if err != nil {
		dialog.ShowError(err, w.Window)
	}
}

// setupEventHandlers registers for application events.
func (w *Window) setupEventHandlers() {
	w.state.On(app.EventReading, func(data interface{}) {
		snap, ok := data.(app.Snapshot)
		if !ok {
			return
		}
		w.mu.Lock()
		due := time.Since(w.lastFrame) >= frameInterval
		if due {
			w.lastFrame = time.Now()
		}
		w.mu.Unlock()
		if !due {
			return
		}

		w.valueLabel.SetText(formatValue(snap.Value, w.unit))
		w.angleLabel.SetText(formatAngle(snap.RawAngle))
		if snap.Circle == nil {
			w.statusBar.SetText("No gauge in view")
		} else {
			w.statusBar.SetText("Tracking gauge")
		}
		if snap.Frame != nil {
			w.live.Image = snap.Frame
			w.live.Refresh()
		}
	})

	w.state.On(app.EventCalibrationChanged, func(data interface{}) {
		ev, ok := data.(calibration.Event)
		if !ok || ev.Kind != calibration.EventStateChanged {
			return
		}
		w.applyCalibration(ev.To)
		if ev.To == calibration.StateIdle && ev.Action == calibration.ActionCancel {
			w.statusBar.SetText("Calibration cancelled")
		}
	})

	w.state.On(app.EventProfileChanged, func(data interface{}) {
		if p, ok := data.(gauge.Profile); ok {
			w.showProfile(p)
		}
	})

	w.state.On(app.EventScaleHint, func(data interface{}) {
		hint, ok := data.(ocr.ScaleHint)
		if !ok {
			return
		}
		if w.minEntry.Text == "" {
			w.minEntry.SetText(formatNumber(hint.Min))
		}
		if w.maxEntry.Text == "" {
			w.maxEntry.SetText(formatNumber(hint.Max))
		}
		w.statusBar.SetText("Scale read from dial")
	})
}

func (w *Window) applyCalibration(s calibration.State) {
	c := controlsFor(s)
	w.prompt.SetText(calibration.Prompt(s))
	w.primaryBtn.SetText(c.Button)
	setVisible(w.calColor, c.ShowColor)
	setVisible(w.rangeBox, c.ShowRange)
	setEnabled(w.cancelBtn, c.CanCancel)
	setEnabled(w.profileColor, c.CanSetColor)
}

func (w *Window) showProfile(p gauge.Profile) {
	w.profileLabel.SetText(formatProfile(p))
	w.syncingColors = true
	w.profileColor.SetSelected(p.NeedleColor.String())
	w.syncingColors = false
}

func (w *Window) chartLoop() {
	ticker := time.NewTicker(chartInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			img, err := w.history.Render(chartWidth, chartHeight)
			if err != nil {
				logrus.WithError(err).Debug("chart not rendered")
				continue
			}
			w.chart.Image = img
			w.chart.Refresh()
			w.peakLabel.SetText(formatPeak(w.history.Peak(), w.unit))
		}
	}
}

func setVisible(o fyne.CanvasObject, visible bool) {
	if visible {
		o.Show()
	} else {
		o.Hide()
	}
}

type disableable interface {
	Enable()
	Disable()
}

func setEnabled(d disableable, enabled bool) {
	if enabled {
		d.Enable()
	} else {
		d.Disable()
	}
}
