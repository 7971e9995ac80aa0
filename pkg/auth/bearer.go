package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// VerifyBearerToken checks the "Authorization: Bearer <token>" header of r
func VerifyBearerToken(r *http.Request, expectedToken string) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return fmt.Errorf("missing Authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok {
		return fmt.Errorf("invalid Authorization header format")
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return fmt.Errorf("invalid authorization scheme: %s", scheme)
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(expectedToken)) != 1 {
		return fmt.Errorf("invalid bearer token")
	}

	return nil
}
