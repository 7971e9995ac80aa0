package validator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/pipeline"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

type record struct {
	values  map[string]interface{}
	changed bool
}

func (r *record) Value(attribute string) interface{} {
	return r.values[attribute]
}

func (r *record) Changed() bool {
	return r.changed
}

type detector struct {
	available bool
	codes     []scanner.ErrorCode
	scans     int
}

func (d *detector) Executable() bool {
	return d.available
}

func (d *detector) RunScan(_ context.Context, _ string, errs *scanner.Errors) {
	d.scans++
	for _, code := range d.codes {
		errs.Add(code)
	}
}

type backends struct {
	storage storage.Storage
	scanner *scanner.Scanner
	err     error
	scanned bool
}

func (b *backends) Storage() (storage.Storage, error) {
	return b.storage, b.err
}

func (b *backends) Scanner() (*scanner.Scanner, error) {
	b.scanned = true
	return b.scanner, nil
}

func nullLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newBackends(d *detector) *backends {
	st := storage.NewFilepath(nil, nullLogger())
	env := scanner.Env{
		Storage: func() (storage.Storage, error) { return st, nil },
		Logger:  nullLogger(),
	}
	return &backends{
		storage: st,
		scanner: scanner.NewWithDetector("scripted", config.Options{}, d, env),
	}
}

func TestValidateEach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	tests := []struct {
		name        string
		value       interface{}
		changed     bool
		detector    *detector
		want        []scanner.ErrorCode
		wantScanner bool
		wantScans   int
	}{
		{
			name:     "storage does not accept the value",
			value:    42,
			changed:  true,
			detector: &detector{available: true, codes: []scanner.ErrorCode{scanner.CodeVirusDetected}},
		},
		{
			name:     "attribute not changed",
			value:    path,
			changed:  false,
			detector: &detector{available: true, codes: []scanner.ErrorCode{scanner.CodeVirusDetected}},
		},
		{
			name:        "scanner unavailable",
			value:       path,
			changed:     true,
			detector:    &detector{available: false, codes: []scanner.ErrorCode{scanner.CodeVirusDetected}},
			wantScanner: true,
		},
		{
			name:        "clean",
			value:       path,
			changed:     true,
			detector:    &detector{available: true},
			wantScanner: true,
			wantScans:   1,
		},
		{
			name:        "infected",
			value:       path,
			changed:     true,
			detector:    &detector{available: true, codes: []scanner.ErrorCode{scanner.CodeClientError, scanner.CodeVirusDetected}},
			want:        []scanner.ErrorCode{scanner.CodeClientError, scanner.CodeVirusDetected},
			wantScanner: true,
			wantScans:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackends(tt.detector)
			v := New(b, nullLogger())

			codes, err := v.ValidateEach(&record{values: map[string]interface{}{"file": tt.value}, changed: tt.changed}, "file")
			require.NoError(t, err)

			assert.Equal(t, tt.want, codes)
			assert.Equal(t, tt.wantScanner, b.scanned)
			assert.Equal(t, tt.wantScans, tt.detector.scans)
		})
	}
}

func TestValidateEachStorageError(t *testing.T) {
	storageErr := errors.New("storage down")
	v := New(&backends{err: storageErr}, nullLogger())

	_, err := v.ValidateEach(&record{changed: true}, "file")
	assert.ErrorIs(t, err, storageErr)
}

func TestValidateAttributes(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "clean.txt")
	infected := filepath.Join(dir, "eicar.com")
	require.NoError(t, os.WriteFile(clean, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(infected, []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`), 0o644))

	p := pipeline.New(nullLogger())
	require.NoError(t, p.SetScanner(scanner.TypeEicar))
	require.NoError(t, p.SetStorage(storage.TypeFilepath))

	v := New(p, nullLogger())
	rec := &record{
		values:  map[string]interface{}{"avatar": clean, "document": infected},
		changed: true,
	}

	failed, err := v.Validate(context.Background(), rec, "avatar", "document")
	require.NoError(t, err)

	assert.Equal(t, map[string][]scanner.ErrorCode{
		"document": {scanner.CodeVirusDetected},
	}, failed)
	assert.NoFileExists(t, infected)
	assert.FileExists(t, clean)
}
