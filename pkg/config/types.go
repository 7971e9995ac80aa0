package config

import "time"

// Default backend selections used when the settings file leaves them empty
const (
	DefaultScannerType = "eicar"
	DefaultStorageType = "multi"
)

// Config represents the complete application configuration
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Scanner  BackendConfig `yaml:"scanner"`
	Storage  BackendConfig `yaml:"storage"`

	// Addons replaces the default addon list when set. An explicit empty
	// list disables all addons.
	Addons []string `yaml:"addons"`

	Server ServerConfig `yaml:"server"`
	Queue  QueueConfig  `yaml:"queue"`
}

// BackendConfig selects a backend implementation by name
type BackendConfig struct {
	Type    string  `yaml:"type"`
	Options Options `yaml:"options,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int        `yaml:"port"`
	ReadTimeout     string     `yaml:"read_timeout"`
	WriteTimeout    string     `yaml:"write_timeout"`
	MaxRequestSize  int64      `yaml:"max_request_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	Auth            AuthConfig `yaml:"auth"`
}

// AuthConfig defines authentication settings for the scan API
type AuthConfig struct {
	Type   string `yaml:"type"`   // hmac, bearer or none
	Secret string `yaml:"secret"` // HMAC secret or bearer token
}

// QueueConfig holds scan queue settings
type QueueConfig struct {
	BufferSize int    `yaml:"buffer_size"`
	JobTimeout string `yaml:"job_timeout"`
}

// ParseDuration converts string duration to time.Duration
func (c *Config) ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
