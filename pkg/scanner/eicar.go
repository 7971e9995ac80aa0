package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// EICAR test file digests, with and without a trailing newline
var eicarHashes = []string{
	"275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f",
	"131f95c51cc819465fa1797f6ccacf9d494aaaff46fa3eac73ae63ffbdfd8267",
}

// HashDetector flags files whose SHA-256 digest is on a known-bad list. With
// the default list it detects the EICAR test file and nothing else.
type HashDetector struct {
	known  map[string]struct{}
	logger *logrus.Logger
}

// NewHashDetector reads the "known_bad_hashes" option
func NewHashDetector(opts config.Options, logger *logrus.Logger) (*HashDetector, error) {
	d := &HashDetector{known: make(map[string]struct{}), logger: logger}

	for _, h := range opts.Strings("known_bad_hashes") {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, err := hex.DecodeString(h); err != nil || len(h) != sha256.Size*2 {
			return nil, fmt.Errorf("invalid sha256 digest in known_bad_hashes: %q", h)
		}
		d.known[h] = struct{}{}
	}

	return d, nil
}

// Executable is always true; hashing needs no external engine
func (d *HashDetector) Executable() bool {
	return true
}

func (d *HashDetector) RunScan(_ context.Context, path string, errs *Errors) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		errs.Add(CodeFileNotFound)
		return
	}

	sum, err := fileDigest(path)
	if err != nil {
		d.logger.WithError(err).WithField("path", path).Warn("Failed to hash file")
		errs.Add(CodeClientError)
		return
	}

	if _, bad := d.known[sum]; bad {
		errs.Add(CodeVirusDetected)
	}
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
