package config

import (
	"fmt"
	"net"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Limits for buffer allocation and config validation.
const (
	MaxSampleCount  = 8000
	MaxFilterOrder  = 4
	MaxSensitivity  = 3
	DefaultAPPrefix = "VibSensor_"
)

// Config holds all application configuration values.
type Config struct {
	WiFi   WiFiConfig   `yaml:"wifi"`
	Influx InfluxConfig `yaml:"influx"`
	MQTT   MQTTConfig   `yaml:"mqtt"`

	// Operation identification, e.g. "L9OP600"
	OperationID string `yaml:"operation_id"`

	// Hardware
	Trigger TriggerConfig `yaml:"trigger"`
	SPI     SPIConfig     `yaml:"spi"`
	Display DisplayConfig `yaml:"display"`

	// Sensor sensitivity range: 0=±0.5g, 1=±1g, 2=±2g, 3=±4g
	Sensitivity int `yaml:"sensitivity"`

	// Sampling parameters
	SampleCount    int `yaml:"sample_count"`
	SampleRateHz   int `yaml:"sample_rate_hz"`
	FilterCutoffHz int `yaml:"filter_cutoff_hz"`

	// Whether to upload time-domain data in addition to spectra
	SendTimeDomain bool `yaml:"send_time_domain"`
}

// WiFiConfig contains station credentials. An empty SSID means the device
// goes straight to access-point mode for configuration.
type WiFiConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	APPrefix string `yaml:"ap_prefix"`
	// Interface used by the wpa_cli/hostapd backend
	Interface string `yaml:"interface"`
}

// InfluxConfig contains the InfluxDB 2.x connection parameters.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// MQTTConfig contains broker settings for status publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	StatusTopic string `yaml:"status_topic"`
	WiFiTopic   string `yaml:"wifi_topic"`
}

// TriggerConfig contains the PLC trigger input settings.
type TriggerConfig struct {
	GPIOPin    string `yaml:"gpio_pin"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// SPIConfig contains the accelerometer SPI bus settings.
type SPIConfig struct {
	Device  string `yaml:"device"`
	SpeedHz int64  `yaml:"speed_hz"`
}

// DisplayConfig contains the status OLED settings.
type DisplayConfig struct {
	Enabled          bool `yaml:"enabled"`
	UpdateIntervalMS int  `yaml:"update_interval_ms"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		WiFi: WiFiConfig{
			APPrefix:  DefaultAPPrefix,
			Interface: "wlan0",
		},
		Influx: InfluxConfig{
			URL:    "http://192.168.1.100:8086",
			Org:    "expertise",
			Bucket: "expertise",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "vibration-monitor",
			StatusTopic: "vibration/status",
			WiFiTopic:   "vibration/wifi",
		},
		OperationID: "L9OP600",
		Trigger: TriggerConfig{
			GPIOPin:    "GPIO4",
			DebounceMS: 100,
		},
		SPI: SPIConfig{
			Device:  "/dev/spidev0.0",
			SpeedHz: 2000000,
		},
		Display: DisplayConfig{
			Enabled:          false,
			UpdateIntervalMS: 500,
		},
		Sensitivity: 2, // ±2g

		// Power-of-2 window at the maximum ADXL313 rate, cutoff at half of
		// Nyquist for anti-aliasing.
		SampleCount:    4096,
		SampleRateHz:   3200,
		FilterCutoffHz: 1600,

		// Time-domain upload disabled by default to save bandwidth.
		SendTimeDomain: false,
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, defaults are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills in required fields that are missing from the file.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.WiFi.APPrefix == "" {
		c.WiFi.APPrefix = def.WiFi.APPrefix
	}
	if c.WiFi.Interface == "" {
		c.WiFi.Interface = def.WiFi.Interface
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.StatusTopic == "" {
		c.MQTT.StatusTopic = def.MQTT.StatusTopic
	}
	if c.MQTT.WiFiTopic == "" {
		c.MQTT.WiFiTopic = def.MQTT.WiFiTopic
	}
	if c.Trigger.GPIOPin == "" {
		c.Trigger.GPIOPin = def.Trigger.GPIOPin
	}
	if c.Trigger.DebounceMS == 0 {
		c.Trigger.DebounceMS = def.Trigger.DebounceMS
	}
	if c.SPI.Device == "" {
		c.SPI.Device = def.SPI.Device
	}
	if c.SPI.SpeedHz == 0 {
		c.SPI.SpeedHz = def.SPI.SpeedHz
	}
	if c.Display.UpdateIntervalMS == 0 {
		c.Display.UpdateIntervalMS = def.Display.UpdateIntervalMS
	}
	if c.SampleCount == 0 {
		c.SampleCount = def.SampleCount
	}
	if c.SampleRateHz == 0 {
		c.SampleRateHz = def.SampleRateHz
	}
	if c.FilterCutoffHz == 0 {
		c.FilterCutoffHz = def.FilterCutoffHz
	}
	if c.OperationID == "" {
		c.OperationID = def.OperationID
	}
}

// Validate checks field bounds.
func (c *Config) Validate() error {
	if c.SampleCount < 1 || c.SampleCount > MaxSampleCount {
		return fmt.Errorf("sample_count must be 1-%d, got %d", MaxSampleCount, c.SampleCount)
	}
	if c.SampleRateHz < 1 {
		return fmt.Errorf("sample_rate_hz must be positive, got %d", c.SampleRateHz)
	}
	if c.FilterCutoffHz < 1 {
		return fmt.Errorf("filter_cutoff_hz must be positive, got %d", c.FilterCutoffHz)
	}
	if c.Sensitivity < 0 || c.Sensitivity > MaxSensitivity {
		return fmt.Errorf("sensitivity must be 0-%d (0=±0.5g, 1=±1g, 2=±2g, 3=±4g), got %d",
			MaxSensitivity, c.Sensitivity)
	}
	return nil
}

// IsWiFiConfigured reports whether station credentials are present.
func (c *Config) IsWiFiConfigured() bool {
	return c.WiFi.SSID != ""
}

// IsInfluxConfigured reports whether the upload endpoint is usable.
func (c *Config) IsInfluxConfigured() bool {
	return c.Influx.URL != "" && c.Influx.Token != ""
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: RWMutex protects concurrent access; the web handler replaces
//     the config at runtime while other goroutines read it.
var (
	globalConfig *Config
	globalPath   string
	configOnce   sync.Once
	configMu     sync.RWMutex

	deviceID string
	idOnce   sync.Once
)

// InitGlobal initializes the global configuration from file.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalPath = configPath
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Replace installs a new configuration (from the web UI) and persists it.
func Replace(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
	if globalPath == "" {
		return nil
	}
	return cfg.Save(globalPath)
}

// DeviceID returns a short stable identifier derived from the last two bytes
// of the first non-loopback MAC address, e.g. "A4F2". Falls back to the
// hostname when no interface is available.
func DeviceID() string {
	idOnce.Do(func() {
		ifaces, err := net.Interfaces()
		if err == nil {
			for _, iface := range ifaces {
				hw := iface.HardwareAddr
				if len(hw) >= 6 && iface.Flags&net.FlagLoopback == 0 {
					deviceID = fmt.Sprintf("%02X%02X", hw[4], hw[5])
					return
				}
			}
		}
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown"
		}
		deviceID = host
	})
	return deviceID
}

// APName returns the access point SSID used for the captive portal.
func (c *Config) APName() string {
	return c.WiFi.APPrefix + DeviceID()
}
