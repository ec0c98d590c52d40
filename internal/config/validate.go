package config

import (
	"fmt"
	"strings"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/protocol"
	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/treadmill"
)

// ValidationError accumulates config validation errors
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate returns a *ValidationError listing every problem found
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateDevice(cfg, ve)
	validateWorkout(cfg, ve)
	validateTiming(cfg, ve)
	validateLog(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateDevice(cfg *Config, ve *ValidationError) {
	if _, err := protocol.ProfileByName(cfg.Device.Profile, cfg.Device.PollInterval); err != nil {
		ve.Add("device.profile %q is not kingsmith-r2 or bowflex-t216", cfg.Device.Profile)
	}
	if !cfg.Simulate && cfg.Device.Address == "" && cfg.Device.Name == "" {
		ve.Add("device.address or device.name is required unless simulate is set")
	}
	if cfg.Simulate && (cfg.Simulator.Port < 0 || cfg.Simulator.Port > 65535) {
		ve.Add("simulator.port must be between 0 and 65535")
	}
}

func validateWorkout(cfg *Config, ve *ValidationError) {
	if cfg.Weight <= 0 {
		ve.Add("weight must be > 0")
	}
	if cfg.ForceInitSpeed < treadmill.MinSpeed || cfg.ForceInitSpeed > treadmill.MaxSpeed {
		ve.Add("force_init_speed must be between %v and %v", treadmill.MinSpeed, treadmill.MaxSpeed)
	}
	if cfg.ForceInitInclination < treadmill.MinIncline || cfg.ForceInitInclination > treadmill.MaxIncline {
		ve.Add("force_init_inclination must be between %v and %v", treadmill.MinIncline, treadmill.MaxIncline)
	}
	if cfg.VirtualDeviceEnabled && strings.TrimSpace(cfg.VirtualDeviceName) == "" {
		ve.Add("virtual_device_name must not be empty when the virtual device is enabled")
	}
}

func validateTiming(cfg *Config, ve *ValidationError) {
	if cfg.Device.PollInterval <= 0 {
		ve.Add("device.poll_interval must be > 0")
	}
	if cfg.Device.RequestTimeout <= 0 {
		ve.Add("device.request_timeout must be > 0")
	}
	if cfg.Device.ScanTimeout <= 0 {
		ve.Add("device.scan_timeout must be > 0")
	}
	if cfg.Metrics.MaxIntegrationGap <= 0 {
		ve.Add("metrics.max_integration_gap must be > 0")
	}
	if cfg.Reconnect.Interval <= 0 {
		ve.Add("reconnect.interval must be > 0")
	}
	if cfg.Reconnect.Burst <= 0 {
		ve.Add("reconnect.burst must be > 0")
	}
}

func validateLog(cfg *Config, ve *ValidationError) {
	if cfg.Log.File == "" {
		return
	}
	if cfg.Log.MaxSizeMB <= 0 {
		ve.Add("log.max_size_mb must be > 0")
	}
	if cfg.Log.MaxBackups < 0 {
		ve.Add("log.max_backups must be >= 0")
	}
	if cfg.Log.MaxAgeDays < 0 {
		ve.Add("log.max_age_days must be >= 0")
	}
}
