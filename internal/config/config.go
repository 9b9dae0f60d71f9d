// Package config loads the bench YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/resource"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

type Config struct {
	Resources ResourcesConfig `yaml:"resources"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ResourcesConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
	USB      USBConfig     `yaml:"usb"`
	Serial   SerialConfig  `yaml:"serial"`
	// Static locators are always listed, e.g. LAN instruments that cannot
	// be found by a bus scan.
	Static []string `yaml:"static"`
	// Simulated models listed as SIM::<model>::INSTR.
	Simulated []string `yaml:"simulated"`
}

type USBConfig struct {
	Enabled bool `yaml:"enabled"`
}

type SerialConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

type TransportConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	ChunkSize  int           `yaml:"chunk_size"`
	Terminator string        `yaml:"terminator"`
	Baud       int           `yaml:"baud"`
	SocketPort int           `yaml:"socket_port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	t := transport.DefaultConfig()
	return &Config{
		Resources: ResourcesConfig{
			CacheTTL: resource.DefaultTTL,
			USB:      USBConfig{Enabled: true},
			Serial: SerialConfig{
				Enabled:  false,
				Patterns: append([]string(nil), resource.DefaultSerialPatterns...),
			},
		},
		Transport: TransportConfig{
			Timeout:    t.Timeout,
			ChunkSize:  t.ChunkSize,
			Terminator: t.Terminator,
			Baud:       t.Baud,
			SocketPort: t.SocketPort,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// LoadConfig reads path over the defaults, so a file only needs the keys
// it changes.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the transports cannot work with.
func (c *Config) Validate() error {
	if c.Resources.CacheTTL < 0 {
		return fmt.Errorf("resources.cache_ttl must not be negative")
	}
	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("transport.timeout must be positive")
	}
	if c.Transport.ChunkSize <= 0 {
		return fmt.Errorf("transport.chunk_size must be positive")
	}
	if c.Transport.Terminator == "" {
		return fmt.Errorf("transport.terminator must not be empty")
	}
	if c.Transport.Baud <= 0 {
		return fmt.Errorf("transport.baud must be positive")
	}
	if c.Transport.SocketPort <= 0 || c.Transport.SocketPort > 65535 {
		return fmt.Errorf("transport.socket_port %d out of range", c.Transport.SocketPort)
	}
	for _, s := range c.Resources.Static {
		if _, err := resource.Parse(s); err != nil {
			return fmt.Errorf("resources.static: %w", err)
		}
	}
	for _, p := range c.Resources.Serial.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("resources.serial.patterns: %q: %w", p, err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not text or json", c.Log.Format)
	}
	if c.Log.Output == "file" && c.Log.FilePath == "" {
		return fmt.Errorf("log.output is file but log.file_path is empty")
	}
	return nil
}

// TransportSettings converts the transport section.
func (c *Config) TransportSettings() transport.Config {
	return transport.Config{
		Timeout:    c.Transport.Timeout,
		ChunkSize:  c.Transport.ChunkSize,
		Terminator: c.Transport.Terminator,
		Baud:       c.Transport.Baud,
		SocketPort: c.Transport.SocketPort,
	}
}
