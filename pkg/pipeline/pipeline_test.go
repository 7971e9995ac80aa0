package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysdig/attachment-virus-scanner/pkg/backend"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

const eicarSample = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(logger)
}

func TestNewStartsReset(t *testing.T) {
	p := newPipeline(t)

	assert.Equal(t, []string{scanner.AddonRemoveInfected}, p.Addons())

	_, err := p.Scanner()
	assert.True(t, errors.Is(err, backend.ErrNotConfigured))

	_, err = p.Storage()
	assert.True(t, errors.Is(err, backend.ErrNotConfigured))
}

func TestScannerInstanceIsCached(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.SetScanner(scanner.TypeEicar))

	first, err := p.Scanner()
	require.NoError(t, err)
	second, err := p.Scanner()
	require.NoError(t, err)
	assert.Same(t, first, second)

	p.DestroyScanner()
	third, err := p.Scanner()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, scanner.TypeEicar, third.Type())
}

func TestReconfigureInstanceToType(t *testing.T) {
	p := newPipeline(t)
	logger, _ := test.NewNullLogger()

	instance, err := scanner.New(scanner.TypeEicar, config.Options{"force_availability": true}, scanner.Env{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, p.SetScanner(instance))

	got, err := p.Scanner()
	require.NoError(t, err)
	assert.Same(t, instance, got)

	require.NoError(t, p.SetScanner([]interface{}{scanner.TypeCLI, map[string]interface{}{
		"command":            "/nonexistent/clamdscan",
		"force_availability": true,
	}}))

	got, err = p.Scanner()
	require.NoError(t, err)
	assert.NotSame(t, instance, got)
	assert.Equal(t, scanner.TypeCLI, got.Type())
	assert.Equal(t, "/nonexistent/clamdscan", got.Config().String("command", ""))
}

func TestSetUnknownBackend(t *testing.T) {
	p := newPipeline(t)

	err := p.SetScanner("nope")
	assert.True(t, errors.Is(err, backend.ErrNotFound))

	err = p.SetStorage(42)
	assert.True(t, errors.Is(err, backend.ErrInvalidInput))
}

func TestAddonList(t *testing.T) {
	p := newPipeline(t)

	require.NoError(t, p.AddAddon(scanner.AddonRemoveInfected))
	require.NoError(t, p.AddAddon(scanner.AddonTracing))
	assert.Equal(t, []string{scanner.AddonRemoveInfected, scanner.AddonTracing}, p.Addons())

	p.RemoveAddon(scanner.AddonRemoveInfected)
	assert.Equal(t, []string{scanner.AddonTracing}, p.Addons())

	require.NoError(t, p.SetAddons(scanner.AddonTracing, scanner.AddonTracing))
	assert.Equal(t, []string{scanner.AddonTracing}, p.Addons())

	err := p.SetAddons(scanner.AddonRemoveInfected, "missing")
	assert.True(t, errors.Is(err, backend.ErrNotFound))
	assert.Equal(t, []string{scanner.AddonTracing}, p.Addons(), "failed SetAddons keeps the list")

	assert.Error(t, p.AddAddon("missing"))

	require.NoError(t, p.SetAddons())
	assert.Empty(t, p.Addons())

	p.Reset()
	assert.Equal(t, DefaultAddons, p.Addons())
}

func TestAddonsReturnsCopy(t *testing.T) {
	p := newPipeline(t)
	addons := p.Addons()
	addons[0] = "changed"
	assert.Equal(t, DefaultAddons, p.Addons())
}

func TestResetKeepsDefinitions(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.SetScanner(backend.Spec{Type: scanner.TypeEicar}))
	require.NoError(t, p.SetStorage(storage.TypeFilepath))
	require.NoError(t, p.SetAddons())

	s1, err := p.Scanner()
	require.NoError(t, err)
	st1, err := p.Storage()
	require.NoError(t, err)

	p.Reset()

	s2, err := p.Scanner()
	require.NoError(t, err)
	st2, err := p.Storage()
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.NotSame(t, st1, st2)
	assert.Equal(t, DefaultAddons, p.Addons())
}

func TestConfigureAndScan(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.Configure(&config.Config{
		Scanner: config.BackendConfig{Type: scanner.TypeEicar},
		Storage: config.BackendConfig{Type: storage.TypeMulti, Options: config.Options{
			"storages": []interface{}{storage.TypeFilepath, storage.TypeStream},
		}},
	}))

	dir := t.TempDir()
	clean := filepath.Join(dir, "clean.txt")
	infected := filepath.Join(dir, "eicar.com")
	require.NoError(t, os.WriteFile(clean, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(infected, []byte(eicarSample), 0o644))

	s, err := p.Scanner()
	require.NoError(t, err)

	virus, err := s.Virus([]string{clean, infected})
	require.NoError(t, err)
	assert.True(t, virus)
	assert.Equal(t, scanner.Errors{scanner.CodeVirusDetected}, s.Errors())

	assert.FileExists(t, clean)
	assert.NoFileExists(t, infected, "remove_infected is a default addon")
}

func TestConfigureExplicitAddons(t *testing.T) {
	p := newPipeline(t)
	err := p.Configure(&config.Config{
		Scanner: config.BackendConfig{Type: scanner.TypeEicar},
		Storage: config.BackendConfig{Type: storage.TypeFilepath},
		Addons:  []string{},
	})
	require.NoError(t, err)
	assert.Empty(t, p.Addons())

	dir := t.TempDir()
	infected := filepath.Join(dir, "eicar.com")
	require.NoError(t, os.WriteFile(infected, []byte(eicarSample), 0o644))

	s, err := p.Scanner()
	require.NoError(t, err)
	virus, err := s.Virus(infected)
	require.NoError(t, err)
	assert.True(t, virus)
	assert.FileExists(t, infected)
}

func TestConfigureRejectsUnknownAddon(t *testing.T) {
	p := New(logrus.New())
	err := p.Configure(&config.Config{
		Scanner: config.BackendConfig{Type: scanner.TypeEicar},
		Storage: config.BackendConfig{Type: storage.TypeFilepath},
		Addons:  []string{"quarantine"},
	})
	assert.True(t, errors.Is(err, backend.ErrNotFound))
}

func TestResetRebuildsAdoptedScanner(t *testing.T) {
	p := newPipeline(t)
	logger, _ := test.NewNullLogger()

	instance, err := scanner.New(scanner.TypeEicar, config.Options{"force_availability": true}, scanner.Env{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, p.SetScanner(instance))

	p.Reset()

	got, err := p.Scanner()
	require.NoError(t, err)
	assert.NotSame(t, instance, got)
	assert.Equal(t, scanner.TypeEicar, got.Type())
	assert.True(t, got.Config().Bool("force_availability"))
}

func TestSetNilScanner(t *testing.T) {
	p := newPipeline(t)

	err := p.SetScanner((*scanner.Scanner)(nil))
	assert.ErrorIs(t, err, backend.ErrInvalidInput)
}
