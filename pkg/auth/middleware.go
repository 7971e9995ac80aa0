// Package auth authenticates requests to the scan API.
package auth

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Supported authentication types
const (
	TypeNone   = "none"
	TypeBearer = "bearer"
	TypeHMAC   = "hmac"
)

// Authenticator checks requests against the configured scheme
type Authenticator struct {
	config config.AuthConfig
	logger *logrus.Logger
}

// NewAuthenticator creates an Authenticator for cfg
func NewAuthenticator(cfg config.AuthConfig, logger *logrus.Logger) (*Authenticator, error) {
	switch cfg.Type {
	case "", TypeNone:
		cfg.Type = TypeNone
	case TypeBearer, TypeHMAC:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("auth secret is required for type %s", cfg.Type)
		}
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.Type)
	}

	return &Authenticator{config: cfg, logger: logger}, nil
}

// Authenticate returns nil when r carries valid credentials
func (a *Authenticator) Authenticate(r *http.Request) error {
	switch a.config.Type {
	case TypeBearer:
		return VerifyBearerToken(r, a.config.Secret)
	case TypeHMAC:
		return VerifyHMAC(r, a.config.Secret)
	default:
		return nil
	}
}

// Middleware rejects unauthenticated requests with 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Authenticate(r); err != nil {
			a.logger.WithFields(logrus.Fields{
				"remote_addr": r.RemoteAddr,
				"auth_type":   a.config.Type,
				"error":       err.Error(),
			}).Warn("Authentication failed")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication failed"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
