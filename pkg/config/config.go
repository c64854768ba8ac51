package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the node and client configuration.
type Config struct {
	Network  NetworkConfig  `yaml:"network"`
	Sampling SamplingConfig `yaml:"sampling"`
	Source   SourceConfig   `yaml:"source"`
	Serial   SerialConfig   `yaml:"serial"`
	Mock     MockConfig     `yaml:"mock"`
	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
	Client   ClientConfig   `yaml:"client"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// NetworkConfig contains listener configuration for both planes.
type NetworkConfig struct {
	DataAddr    string        `yaml:"data_addr"`
	ControlAddr string        `yaml:"control_addr"`
	Backoff     time.Duration `yaml:"backoff"`   // Delay before every retry after a failure
	Interface   string        `yaml:"interface"` // Host interface gating the network state ("" = always up)
	PollPeriod  time.Duration `yaml:"poll_period"`
}

// SamplingConfig contains ring sizing and pacing parameters.
type SamplingConfig struct {
	DefaultFrequency uint32        `yaml:"default_frequency"` // Hz, used when nothing is persisted
	SendFrequency    uint32        `yaml:"send_frequency"`    // 0.1 Hz units
	MaxLatency       time.Duration `yaml:"max_latency"`       // Worst-case consumer latency the ring must absorb
	Yield            time.Duration `yaml:"yield"`             // Sender sleep between iterations
	MaxPoolBytes     int           `yaml:"max_pool_bytes"`
	MaxPayloadSize   uint32        `yaml:"max_payload_size"` // Largest accepted command frame
	Group            uint8         `yaml:"group"`
	RestartDelay     time.Duration `yaml:"restart_delay"`
}

// SourceConfig selects the analog source.
type SourceConfig struct {
	Kind string `yaml:"kind"` // "mock" or "serial"
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MockConfig contains synthetic signal configuration.
type MockConfig struct {
	Offset     float64 `yaml:"offset"`      // ADC counts
	Amplitude  float64 `yaml:"amplitude"`   // ADC counts
	SignalHz   float64 `yaml:"signal_hz"`   // Sine frequency
	NoiseLevel float64 `yaml:"noise_level"` // ADC counts
}

// StoreConfig contains persistent storage configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig contains the metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // "" disables the endpoint
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ClientConfig contains the addresses used by the viewer and iactl.
type ClientConfig struct {
	DataAddr    string        `yaml:"data_addr"`
	ControlAddr string        `yaml:"control_addr"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// MonitorConfig contains display window parameters.
type MonitorConfig struct {
	WindowSeconds  float64 `yaml:"window_seconds"`
	AverageSamples int     `yaml:"average_samples"` // Number of samples to average (0 = disabled, default)
	PlotPoints     int     `yaml:"plot_points"`
	VRef           float64 `yaml:"vref"`     // ADC reference voltage (V)
	ADCBits        int     `yaml:"adc_bits"` // ADC resolution
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			DataAddr:    ":5000",
			ControlAddr: ":5001",
			Backoff:     time.Second,
			PollPeriod:  500 * time.Millisecond,
		},
		Sampling: SamplingConfig{
			DefaultFrequency: 20000,
			SendFrequency:    200, // 20 Hz
			MaxLatency:       2 * time.Second,
			Yield:            time.Millisecond,
			MaxPoolBytes:     8 << 20,
			MaxPayloadSize:   64 << 10,
			Group:            1,
			RestartDelay:     time.Second,
		},
		Source: SourceConfig{
			Kind: "mock",
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 460800,
		},
		Mock: MockConfig{
			Offset:     2048,
			Amplitude:  1500,
			SignalHz:   50,
			NoiseLevel: 20,
		},
		Store: StoreConfig{
			Path: "iaware-state.yaml",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Client: ClientConfig{
			DataAddr:    "192.168.4.1:5000",
			ControlAddr: "192.168.4.1:5001",
			DialTimeout: 5 * time.Second,
		},
		Monitor: MonitorConfig{
			WindowSeconds: 2,
			PlotPoints:    2000,
			VRef:          3.3,
			ADCBits:       12,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
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

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Network.DataAddr == "" {
		c.Network.DataAddr = def.Network.DataAddr
	}
	if c.Network.ControlAddr == "" {
		c.Network.ControlAddr = def.Network.ControlAddr
	}
	if c.Network.Backoff <= 0 {
		c.Network.Backoff = def.Network.Backoff
	}
	if c.Network.PollPeriod <= 0 {
		c.Network.PollPeriod = def.Network.PollPeriod
	}

	if c.Sampling.DefaultFrequency == 0 {
		c.Sampling.DefaultFrequency = def.Sampling.DefaultFrequency
	}
	if c.Sampling.SendFrequency == 0 {
		c.Sampling.SendFrequency = def.Sampling.SendFrequency
	}
	if c.Sampling.MaxLatency <= 0 {
		c.Sampling.MaxLatency = def.Sampling.MaxLatency
	}
	if c.Sampling.Yield <= 0 {
		c.Sampling.Yield = def.Sampling.Yield
	}
	if c.Sampling.MaxPoolBytes <= 0 {
		c.Sampling.MaxPoolBytes = def.Sampling.MaxPoolBytes
	}
	if c.Sampling.MaxPayloadSize == 0 {
		c.Sampling.MaxPayloadSize = def.Sampling.MaxPayloadSize
	}
	if c.Sampling.RestartDelay <= 0 {
		c.Sampling.RestartDelay = def.Sampling.RestartDelay
	}

	if c.Source.Kind == "" {
		c.Source.Kind = def.Source.Kind
	}
	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Mock.SignalHz == 0 {
		c.Mock.SignalHz = def.Mock.SignalHz
	}

	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Client.DataAddr == "" {
		c.Client.DataAddr = def.Client.DataAddr
	}
	if c.Client.ControlAddr == "" {
		c.Client.ControlAddr = def.Client.ControlAddr
	}
	if c.Client.DialTimeout <= 0 {
		c.Client.DialTimeout = def.Client.DialTimeout
	}

	if c.Monitor.WindowSeconds == 0 {
		c.Monitor.WindowSeconds = def.Monitor.WindowSeconds
	}
	if c.Monitor.PlotPoints == 0 {
		c.Monitor.PlotPoints = def.Monitor.PlotPoints
	}
	if c.Monitor.VRef <= 0 {
		c.Monitor.VRef = def.Monitor.VRef
	}
	if c.Monitor.ADCBits <= 0 || c.Monitor.ADCBits > 16 {
		c.Monitor.ADCBits = def.Monitor.ADCBits
	}
}
