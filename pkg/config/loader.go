package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML configuration file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML settings, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the config, leaving ${FILE:...}
	// secret references for InjectSecretsIntoConfig
	expanded := os.Expand(string(data), func(name string) string {
		if strings.HasPrefix(name, "FILE:") {
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig builds the service configuration from the environment: the file
// named by CONFIG_FILE (defaults apply when it does not exist), secrets from
// SECRETS_DIR, and LOG_LEVEL / PORT overrides.
func LoadConfig() (*Config, error) {
	env := LoadFromEnv()

	var cfg *Config
	if _, err := os.Stat(env.ConfigFile); os.IsNotExist(err) {
		cfg = Default()
	} else {
		loaded, err := Load(env.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	secrets, err := LoadSecretsFromFiles(env.SecretsDir)
	if err != nil {
		return nil, err
	}
	InjectSecretsIntoConfig(cfg, secrets)

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unspecified configuration options
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Backend defaults
	if c.Scanner.Type == "" {
		c.Scanner.Type = DefaultScannerType
	}
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultStorageType
		if c.Storage.Options == nil {
			c.Storage.Options = Options{
				"storages": []interface{}{"filepath", "stream", "blob", "upload"},
			}
		}
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "5m"
	}
	if c.Server.MaxRequestSize == 0 {
		c.Server.MaxRequestSize = 100 * 1024 * 1024 // 100MB
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "30s"
	}
	if c.Server.Auth.Type == "" {
		c.Server.Auth.Type = "none"
	}

	// Queue defaults
	if c.Queue.BufferSize == 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.JobTimeout == "" {
		c.Queue.JobTimeout = "10m"
	}
}

// Validate checks the configuration for required fields and valid values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scanner.Type) == "" {
		return fmt.Errorf("scanner.type is required")
	}
	if strings.TrimSpace(c.Storage.Type) == "" {
		return fmt.Errorf("storage.type is required")
	}

	for i, addon := range c.Addons {
		if strings.TrimSpace(addon) == "" {
			return fmt.Errorf("addons[%d]: name is required", i)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", c.Server.Port)
	}

	if err := validateAuthConfig(c.Server.Auth); err != nil {
		return fmt.Errorf("server.auth: %w", err)
	}

	if c.Queue.BufferSize < 0 {
		return fmt.Errorf("queue.buffer_size must not be negative")
	}

	// Validate duration strings
	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"queue.job_timeout":       c.Queue.JobTimeout,
	}

	for name, value := range durations {
		if _, err := c.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

func validateAuthConfig(auth AuthConfig) error {
	if auth.Type != "hmac" && auth.Type != "bearer" && auth.Type != "none" {
		return fmt.Errorf("invalid auth type '%s', must be 'hmac', 'bearer', or 'none'", auth.Type)
	}

	if (auth.Type == "hmac" || auth.Type == "bearer") && auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth type is '%s'", auth.Type)
	}

	return nil
}
