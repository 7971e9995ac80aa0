package scanner

import (
	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/backend"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Registered scanner type names
const (
	TypeEicar = "eicar"
	TypeClamd = "clamd"
	TypeCLI   = "cli"
	TypeHTTP  = "http"
)

func init() {
	RegisterDetector(TypeEicar, config.Options{
		"known_bad_hashes": eicarHashes,
	}, func(opts config.Options, logger *logrus.Logger) (Detector, error) {
		return NewHashDetector(opts, logger)
	})

	RegisterDetector(TypeClamd, config.Options{
		"network": "unix",
		"address": "/var/run/clamav/clamd.ctl",
		"timeout": "30s",
	}, func(opts config.Options, logger *logrus.Logger) (Detector, error) {
		return NewClamdDetector(opts, logger)
	})

	RegisterDetector(TypeCLI, config.Options{
		"command": "clamdscan",
		"args":    []string{"--no-summary"},
		"timeout": "60s",
	}, func(opts config.Options, logger *logrus.Logger) (Detector, error) {
		return NewCLIScanner(opts, logger)
	})

	RegisterDetector(TypeHTTP, config.Options{
		"api_url":       "http://localhost:3310",
		"verify_tls":    true,
		"timeout":       "30s",
		"max_retries":   3,
		"retry_backoff": "1s",
	}, func(opts config.Options, logger *logrus.Logger) (Detector, error) {
		return NewHTTPScanner(opts, logger)
	})
}

// NewRegistry returns a scanner registry whose factories build scanners
// bound to env. Each detector type is registered under its name.
func NewRegistry(env Env) *backend.Registry[*Scanner] {
	registry := backend.NewRegistry[*Scanner](backend.KindScanner)

	for _, name := range DetectorTypes() {
		name := name
		registry.Register(name, func(opts config.Options, logger *logrus.Logger) (*Scanner, error) {
			scannerEnv := env
			if logger != nil {
				scannerEnv.Logger = logger
			}

			s, err := New(name, opts, scannerEnv)
			if err != nil {
				return nil, err
			}

			s.logger.WithFields(logrus.Fields{
				"scanner_type": name,
				"available":    s.Available(),
			}).Info("Scanner backend created")

			return s, nil
		})
	}

	return registry
}
