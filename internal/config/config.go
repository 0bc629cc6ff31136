package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	AdminAddr       string        `mapstructure:"admin_addr" yaml:"admin_addr"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:            ":6000",
		AdminAddr:       ":6060",
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		ReadBufferSize:  4096,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.ReadBufferSize != 0 {
		c.ReadBufferSize = other.ReadBufferSize
	}
}
