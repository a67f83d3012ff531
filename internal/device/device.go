package device

import (
	"sync"

	"go.uber.org/zap"
)

// Mode describes whether connectivity is detected or forced by the user or
// the application.
type Mode int

const (
	ModeAuto Mode = iota
	ModeForcedOnline
	ModeForcedOffline
)

func (m Mode) String() string {
	switch m {
	case ModeForcedOnline:
		return "forced-online"
	case ModeForcedOffline:
		return "forced-offline"
	default:
		return "auto"
	}
}

// Device tracks network availability for mail operations.
type Device struct {
	mu       sync.Mutex
	mode     Mode
	detected bool
	log      *zap.SugaredLogger
}

// New returns a device in auto mode with the given detected link state.
func New(log *zap.SugaredLogger, detectedOnline bool) *Device {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Device{detected: detectedOnline, log: log}
}

// IsOnline reports whether network operations may proceed.
func (d *Device) IsOnline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.mode {
	case ModeForcedOnline:
		return true
	case ModeForcedOffline:
		return false
	}
	return d.detected
}

// IsForced reports whether the online state is overridden.
func (d *Device) IsForced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode != ModeAuto
}

// Mode returns the current mode.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Device) ForceOnline()  { d.setMode(ModeForcedOnline) }
func (d *Device) ForceOffline() { d.setMode(ModeForcedOffline) }

// Reset returns the device to detected connectivity.
func (d *Device) Reset() { d.setMode(ModeAuto) }

// SetDetected updates the detected link state used in auto mode.
func (d *Device) SetDetected(online bool) {
	d.mu.Lock()
	changed := d.detected != online
	d.detected = online
	d.mu.Unlock()

	if changed {
		d.log.Infow("Connectivity changed", "online", online)
	}
}

func (d *Device) setMode(m Mode) {
	d.mu.Lock()
	prev := d.mode
	d.mode = m
	d.mu.Unlock()

	if prev != m {
		d.log.Infow("Device mode changed", "from", prev.String(), "to", m.String())
	}
}
