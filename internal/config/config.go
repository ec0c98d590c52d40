// Package config loads the bridge settings from flags, TREADMILL_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "TREADMILL"
	configDirName = ".treadmill-bridge"

	// HeartRateBeltDisabled is the belt name that turns the belt client off
	HeartRateBeltDisabled = "Disabled"
)

type Config struct {
	Device DeviceConfig `mapstructure:"device"`

	Weight                 float64 `mapstructure:"weight"`
	VirtualDeviceEnabled   bool    `mapstructure:"virtual_device_enabled"`
	VirtualDeviceForceBike bool    `mapstructure:"virtual_device_force_bike"`
	VirtualDeviceName      string  `mapstructure:"virtual_device_name"`
	HeartRateBeltName      string  `mapstructure:"heart_rate_belt_name"`
	ForceInitSpeed         float64 `mapstructure:"force_init_speed"`
	ForceInitInclination   float64 `mapstructure:"force_init_inclination"`

	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Log       LogConfig       `mapstructure:"log"`
	Simulator SimulatorConfig `mapstructure:"simulator"`

	Console  bool `mapstructure:"console"`
	Simulate bool `mapstructure:"simulate"`

	// File is the config file that was read, empty when none
	File string `mapstructure:"-"`
}

type DeviceConfig struct {
	Address        string        `mapstructure:"address"`
	Name           string        `mapstructure:"name"`
	Profile        string        `mapstructure:"profile"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ScanTimeout    time.Duration `mapstructure:"scan_timeout"`
}

type MetricsConfig struct {
	MaxIntegrationGap time.Duration `mapstructure:"max_integration_gap"`
}

type ReconnectConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Burst    int           `mapstructure:"burst"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose"`
}

type SimulatorConfig struct {
	// Port of the simulator control panel, 0 disables it
	Port int `mapstructure:"port"`
}

// HeartRateBeltEnabled reports whether a belt name is configured
func (c *Config) HeartRateBeltEnabled() bool {
	name := strings.TrimSpace(c.HeartRateBeltName)
	return name != "" && !strings.EqualFold(name, HeartRateBeltDisabled)
}

// DefaultDir is where the config file and logs live unless overridden
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, configDirName)
}

// binding ties a viper key to the flag that sets it
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"device.address", "address"},
	{"device.name", "name"},
	{"device.profile", "profile"},
	{"device.poll_interval", "poll-interval"},
	{"device.request_timeout", "request-timeout"},
	{"device.scan_timeout", "scan-timeout"},
	{"weight", "weight"},
	{"virtual_device_enabled", "virtual-device"},
	{"virtual_device_force_bike", "force-bike"},
	{"virtual_device_name", "virtual-name"},
	{"heart_rate_belt_name", "hr-belt"},
	{"force_init_speed", "init-speed"},
	{"force_init_inclination", "init-incline"},
	{"metrics.max_integration_gap", "max-integration-gap"},
	{"reconnect.interval", "reconnect-interval"},
	{"reconnect.burst", "reconnect-burst"},
	{"log.file", "log-file"},
	{"log.max_size_mb", "log-max-size"},
	{"log.max_backups", "log-max-backups"},
	{"log.max_age_days", "log-max-age"},
	{"log.verbose", "verbose"},
	{"simulator.port", "simulator-port"},
	{"console", "console"},
	{"simulate", "simulate"},
}

// NewFlagSet declares every flag with its default
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "config file (default "+filepath.Join(DefaultDir(), "config.yaml")+")")

	fs.String("address", "", "treadmill BLE address")
	fs.String("name", "", "treadmill BLE local name, used when no address is set")
	fs.String("profile", "kingsmith-r2", "equipment profile: kingsmith-r2 or bowflex-t216")
	fs.Duration("poll-interval", 500*time.Millisecond, "tick interval for profiles that poll")
	fs.Duration("request-timeout", 300*time.Millisecond, "how long a command waits for an answer")
	fs.Duration("scan-timeout", 10*time.Second, "how long to scan for the treadmill")

	fs.Float64("weight", 75.0, "user weight in kg, used for calories")
	fs.Bool("virtual-device", true, "republish the treadmill as a BLE fitness machine")
	fs.Bool("force-bike", false, "republish as an indoor bike instead of a treadmill")
	fs.String("virtual-name", "Treadmill Bridge", "local name of the virtual fitness machine")
	fs.String("hr-belt", HeartRateBeltDisabled, "heart rate belt local name")
	fs.Float64("init-speed", 0, "initial last speed in km/h")
	fs.Float64("init-incline", 0, "initial last inclination in percent")

	fs.Duration("max-integration-gap", 5*time.Second, "longest gap between samples counted for distance")
	fs.Duration("reconnect-interval", time.Second, "minimum spacing of reconnect attempts")
	fs.Int("reconnect-burst", 3, "reconnect attempts allowed back to back")

	fs.String("log-file", filepath.Join(DefaultDir(), "treadmill-bridge.log"), "log file")
	fs.Int("log-max-size", 10, "log file size in MB before rotation")
	fs.Int("log-max-backups", 3, "rotated log files to keep")
	fs.Int("log-max-age", 28, "days to keep rotated log files")
	fs.BoolP("verbose", "v", false, "also log to stderr")

	fs.Int("simulator-port", 8090, "simulator control panel port, 0 disables it")
	fs.Bool("console", true, "show the console")
	fs.Bool("simulate", false, "drive simulated equipment instead of real hardware")
	return fs
}

// Load parses args and merges them with the environment and config file
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("treadmill-bridge")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for _, b := range bindings {
		if err := v.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit, _ := fs.GetString("config")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}
