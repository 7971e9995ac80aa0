package storage

import (
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/metrics"
)

// Base carries what every adapter shares: type name, options, logger and
// the directory temporary copies are written to (option "tmp_dir").
type Base struct {
	typ    string
	config config.Options
	logger *logrus.Logger
	tmpDir string
}

// NewBase builds the shared adapter state
func NewBase(typ string, opts config.Options, logger *logrus.Logger) Base {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts = opts.Clone()
	return Base{
		typ:    typ,
		config: opts,
		logger: logger,
		tmpDir: opts.String("tmp_dir", os.TempDir()),
	}
}

func (b *Base) Type() string {
	return b.typ
}

func (b *Base) Config() config.Options {
	return b.config.Clone()
}

func (b *Base) Logger() *logrus.Logger {
	return b.logger
}

// EachAsset is the default Process: a slice is a collection of assets and
// any other value a collection of one. Nil resources and callbacks are no-ops.
func EachAsset(owner Storage, resource interface{}, visit func(*Processable) error) error {
	if resource == nil || visit == nil {
		return nil
	}

	v := reflect.ValueOf(resource)
	if v.Kind() != reflect.Slice || v.Type().Elem().Kind() == reflect.Uint8 {
		return visit(NewProcessable(owner, resource))
	}

	for i := 0; i < v.Len(); i++ {
		if err := visit(NewProcessable(owner, v.Index(i).Interface())); err != nil {
			return err
		}
	}
	return nil
}

// Materialize copies r into a temporary file readable by external scanners
// and calls withPath with its path. The file is removed on every exit path.
func (b *Base) Materialize(r io.Reader, ext string, withPath func(path string) error) error {
	if r == nil || withPath == nil {
		return nil
	}

	tmp, err := os.CreateTemp(b.tmpDir, "antivirus-*"+strings.ReplaceAll(ext, "*", ""))
	if err != nil {
		return err
	}
	path := tmp.Name()
	metrics.RecordTempFileCreated()

	defer func() {
		tmp.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			b.logger.WithError(err).WithField("path", path).Warn("Failed to remove temporary scan file")
			return
		}
		metrics.RecordTempFileRemoved()
	}()

	if err := os.Chmod(path, 0o644); err != nil {
		return err
	}

	size, err := io.Copy(tmp, r)
	if err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	b.logger.WithFields(logrus.Fields{
		"storage": b.typ,
		"path":    path,
		"size":    humanize.Bytes(uint64(size)),
	}).Debug("Materialized asset for scanning")

	return withPath(path)
}
