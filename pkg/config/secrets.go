package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadSecretsFromFiles loads secrets from mounted Kubernetes Secret volumes
// Looks for files in the format: /secrets/<secret-name>
// Returns a map of secret names to their values
func LoadSecretsFromFiles(secretsDir string) (map[string]string, error) {
	secrets := make(map[string]string)

	// Check if secrets directory exists
	if _, err := os.Stat(secretsDir); os.IsNotExist(err) {
		return secrets, nil
	}

	files, err := os.ReadDir(secretsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		secretPath := filepath.Join(secretsDir, file.Name())
		content, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file %s: %w", file.Name(), err)
		}

		secrets[file.Name()] = strings.TrimSpace(string(content))
	}

	return secrets, nil
}

// InjectSecretsIntoConfig replaces ${FILE:<secret-name>} placeholders with secret values
func InjectSecretsIntoConfig(cfg *Config, secrets map[string]string) {
	cfg.Server.Auth.Secret = resolveSecret(cfg.Server.Auth.Secret, secrets)

	// Backend options may carry credentials, e.g. the scan API token
	injectOptions(cfg.Scanner.Options, secrets)
	injectOptions(cfg.Storage.Options, secrets)
}

// injectOptions resolves placeholders in string values, descending into
// nested mappings and lists
func injectOptions(opts Options, secrets map[string]string) {
	for k, v := range opts {
		opts[k] = injectValue(v, secrets)
	}
}

func injectValue(v interface{}, secrets map[string]string) interface{} {
	switch val := v.(type) {
	case string:
		return resolveSecret(val, secrets)
	case map[string]interface{}:
		injectOptions(Options(val), secrets)
		return val
	case Options:
		injectOptions(val, secrets)
		return val
	case []interface{}:
		for i := range val {
			val[i] = injectValue(val[i], secrets)
		}
		return val
	default:
		return v
	}
}

// resolveSecret replaces ${FILE:<secret-name>} with the secret value
// If not a file reference, returns the original value
func resolveSecret(value string, secrets map[string]string) string {
	prefix := "${FILE:"
	suffix := "}"

	if strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix) {
		secretName := strings.TrimSuffix(strings.TrimPrefix(value, prefix), suffix)
		if secretValue, ok := secrets[secretName]; ok {
			return secretValue
		}
	}

	return value
}
