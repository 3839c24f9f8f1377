// Package env builds the link stack from configuration.
//
// Settings are resolved in order: defaults, YAML config file, environment
// variables, then command line flags.
package env

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/vexlink/pkg/l0/comm"
	"github.com/robotalks/vexlink/pkg/l0/device"
	"github.com/robotalks/vexlink/pkg/l0/diag"
)

// Environment variables.
const (
	EnvConfig      = "VEXLINK_CONFIG"
	EnvDevice      = "VEXLINK_DEVICE"
	EnvMQTTURL     = "VEXLINK_MQTT_URL"
	EnvMetricsAddr = "VEXLINK_METRICS_ADDR"
	EnvDiagLog     = "VEXLINK_DIAG_LOG"
)

// EnumeratorUSB selects device.USBEnumerator, other values are the path
// of a helper printing device lines.
const EnumeratorUSB = "usb"

// DeviceConfig configures discovery.
type DeviceConfig struct {
	// Path opens a fixed device or ws:// relay, skipping discovery.
	Path         string `yaml:"path"`
	Enumerator   string `yaml:"enumerator"`
	VendorMarker string `yaml:"vendor_marker"`
	ClassTag     string `yaml:"class_tag"`
	BaudRate     int    `yaml:"baud_rate"`
}

// LinkConfig tunes the transport.
type LinkConfig struct {
	WriteInterval  time.Duration `yaml:"write_interval"`
	ReadSize       int           `yaml:"read_size"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

// MQTTConfig configures the bridge.
type MQTTConfig struct {
	// URL is like mqtt://host:port/topic-prefix, empty disables the bridge.
	URL        string `yaml:"url"`
	DeviceName string `yaml:"device_name"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// DiagConfig configures diagnostic sinks.
type DiagConfig struct {
	File diag.FileConfig `yaml:"file"`
	// Console logs device text output through glog.
	Console bool `yaml:"console"`
}

// Config is the full configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Link    LinkConfig    `yaml:"link"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
	Diag    DiagConfig    `yaml:"diag"`
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Device: DeviceConfig{
			Enumerator:   EnumeratorUSB,
			VendorMarker: device.DefaultVendorMarker,
			ClassTag:     device.DefaultClassTag,
			BaudRate:     device.DefaultMode.BaudRate,
		},
		Link: LinkConfig{
			WriteInterval:  comm.DefaultWriteInterval,
			ReadSize:       comm.DefaultReadSize,
			BackoffInitial: comm.DefaultBackoff.Initial,
			BackoffMax:     comm.DefaultBackoff.Max,
		},
		MQTT: MQTTConfig{
			URL:        "mqtt://localhost:1883/vexlink/",
			DeviceName: DefaultDeviceName(),
		},
		Metrics: MetricsConfig{
			Addr:      ":9180",
			Namespace: "vexlink",
		},
		Diag: DiagConfig{
			File: diag.FileConfig{MaxSizeMB: 10, MaxBackups: 3},
		},
	}
}

// DefaultDeviceName derives a stable name from the machine id.
func DefaultDeviceName() string {
	id, err := machineid.ProtectedID("vexlink")
	if err != nil || len(id) < 12 {
		return "brain"
	}
	return "brain-" + id[:12]
}

// LoadFile merges settings from a YAML file. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv merges settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if val, ok := lookup(EnvDevice); ok && val != "" {
		c.Device.Path = val
	}
	if val, ok := lookup(EnvMQTTURL); ok {
		c.MQTT.URL = val
	}
	if val, ok := lookup(EnvMetricsAddr); ok {
		c.Metrics.Addr = val
	}
	if val, ok := lookup(EnvDiagLog); ok && val != "" {
		c.Diag.File.Path = val
	}
}

// Flags are the command line flags overriding the configuration.
type Flags struct {
	fs     *flag.FlagSet
	file   string
	values Config
}

// SetupFlags defines flags in fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Defaults()
	fs.StringVar(&f.file, "config", "", "YAML config file, also "+EnvConfig+".")
	fs.StringVar(&f.values.Device.Path, "device", "", "Device path or ws:// relay URL, skips discovery.")
	fs.StringVar(&f.values.Device.Enumerator, "enumerator", d.Device.Enumerator, "Device enumerator: usb or path of a helper script.")
	fs.StringVar(&f.values.MQTT.URL, "mqtt", d.MQTT.URL, "MQTT broker URL, empty disables the bridge.")
	fs.StringVar(&f.values.MQTT.DeviceName, "name", d.MQTT.DeviceName, "Device name in MQTT topics.")
	fs.StringVar(&f.values.Metrics.Addr, "metrics-addr", d.Metrics.Addr, "Listen address of /metrics, empty disables it.")
	fs.StringVar(&f.values.Diag.File.Path, "diag-log", "", "File to append device output.")
	fs.BoolVar(&f.values.Diag.Console, "diag-console", false, "Log device output.")
	fs.DurationVar(&f.values.Link.WriteInterval, "write-interval", d.Link.WriteInterval, "Writer loop interval.")
	return f
}

// Load resolves the configuration. It must be called after the flags
// are parsed.
func (f *Flags) Load() (*Config, error) {
	return f.load(os.LookupEnv)
}

func (f *Flags) load(lookup func(string) (string, bool)) (*Config, error) {
	c := Defaults()
	file := f.file
	if file == "" {
		file, _ = lookup(EnvConfig)
	}
	if file != "" {
		if err := c.LoadFile(file); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv(lookup)
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			c.Device.Path = f.values.Device.Path
		case "enumerator":
			c.Device.Enumerator = f.values.Device.Enumerator
		case "mqtt":
			c.MQTT.URL = f.values.MQTT.URL
		case "name":
			c.MQTT.DeviceName = f.values.MQTT.DeviceName
		case "metrics-addr":
			c.Metrics.Addr = f.values.Metrics.Addr
		case "diag-log":
			c.Diag.File.Path = f.values.Diag.File.Path
		case "diag-console":
			c.Diag.Console = f.values.Diag.Console
		case "write-interval":
			c.Link.WriteInterval = f.values.Link.WriteInterval
		}
	})
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.Link.WriteInterval < 0:
		return fmt.Errorf("invalid write interval %v", c.Link.WriteInterval)
	case c.Link.ReadSize < 0:
		return fmt.Errorf("invalid read size %d", c.Link.ReadSize)
	case c.Link.BackoffInitial < 0 || c.Link.BackoffMax < 0:
		return fmt.Errorf("invalid backoff %v..%v", c.Link.BackoffInitial, c.Link.BackoffMax)
	case c.Device.BaudRate < 0:
		return fmt.Errorf("invalid baud rate %d", c.Device.BaudRate)
	}
	return nil
}
