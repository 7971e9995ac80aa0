package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Signature headers, in lookup order
var signatureHeaders = []string{"X-Scan-Signature", "X-Hub-Signature-256"}

// VerifyHMAC checks the "sha256=<hex>" signature of the request body. The
// body is buffered and restored so handlers can read it again.
func VerifyHMAC(r *http.Request, secret string) error {
	var signature string
	for _, name := range signatureHeaders {
		if signature = r.Header.Get(name); signature != "" {
			break
		}
	}
	if signature == "" {
		return fmt.Errorf("missing HMAC signature header")
	}

	algorithm, provided, ok := strings.Cut(signature, "=")
	if !ok {
		return fmt.Errorf("invalid signature format")
	}
	if algorithm != "sha256" {
		return fmt.Errorf("unsupported signature algorithm: %s", algorithm)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return fmt.Errorf("HMAC signature mismatch")
	}

	return nil
}

// Sign returns the signature header value for body
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
