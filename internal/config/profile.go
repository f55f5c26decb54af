package config

import (
	"github.com/sirupsen/logrus"

	"gauge-telemetry/internal/gauge"
)

// Profile file keys.
const (
	KeyNeedleColor = "needle_color"
	KeyMinAngle    = "min_angle"
	KeyMaxAngle    = "max_angle"
	KeyMinValue    = "min_val"
	KeyMaxValue    = "max_val"
)

// Profiles persists the calibration profile in a Store.
type Profiles struct {
	store *Store
}

// NewProfiles wraps store.
func NewProfiles(store *Store) *Profiles {
	return &Profiles{store: store}
}

// Store returns the underlying key/value store.
func (p *Profiles) Store() *Store {
	return p.store
}

// Load returns the persisted profile. ok is false when any key is missing
// or holds an invalid value, in which case callers fall back to
// gauge.DefaultProfile.
func (p *Profiles) Load() (gauge.Profile, bool) {
	colorName, ok := p.store.String(KeyNeedleColor)
	if !ok {
		return gauge.Profile{}, false
	}
	c, err := gauge.ParseNeedleColor(colorName)
	if err != nil {
		logrus.WithError(err).Warn("ignoring stored profile")
		return gauge.Profile{}, false
	}

	prof := gauge.Profile{NeedleColor: c}
	for key, dst := range map[string]*float64{
		KeyMinAngle: &prof.MinAngle,
		KeyMaxAngle: &prof.MaxAngle,
		KeyMinValue: &prof.MinValue,
		KeyMaxValue: &prof.MaxValue,
	} {
		v, ok := p.store.Float(key)
		if !ok {
			return gauge.Profile{}, false
		}
		*dst = v
	}

	if err := prof.Validate(); err != nil {
		logrus.WithError(err).Warn("ignoring stored profile")
		return gauge.Profile{}, false
	}
	return prof, true
}

// LoadOrDefault returns the persisted profile or the default one.
func (p *Profiles) LoadOrDefault() gauge.Profile {
	if prof, ok := p.Load(); ok {
		return prof
	}
	return gauge.DefaultProfile()
}

// Save writes prof. On error the store still holds the new values in
// memory; the error wraps ErrConfigIO.
func (p *Profiles) Save(prof gauge.Profile) error {
	p.store.SetString(KeyNeedleColor, prof.NeedleColor.String())
	p.store.SetFloat(KeyMinAngle, prof.MinAngle)
	p.store.SetFloat(KeyMaxAngle, prof.MaxAngle)
	p.store.SetFloat(KeyMinValue, prof.MinValue)
	p.store.SetFloat(KeyMaxValue, prof.MaxValue)

	if err := p.store.Save(); err != nil {
		return err
	}
	logrus.WithField("path", p.store.Path()).Debug("profile saved")
	return nil
}
