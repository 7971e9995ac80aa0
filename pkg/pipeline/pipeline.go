// Package pipeline wires a scanner, a storage and the addon list together.
package pipeline

import (
	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/backend"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

// DefaultAddons is the addon list a pipeline starts with and returns to on Reset
var DefaultAddons = []string{scanner.AddonRemoveInfected}

// Pipeline holds the active scanner and storage backends and the addons
// applied to new scanners. Scanners built by a Pipeline read its storage
// and addon list.
//
// A Pipeline is not safe for concurrent use; configure it before scanning.
type Pipeline struct {
	logger   *logrus.Logger
	scanners *backend.Slot[*scanner.Scanner]
	storages *backend.Slot[storage.Storage]
	addons   []string
}

// New creates a pipeline in reset state with no backends configured
func New(logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Pipeline{logger: logger}

	env := scanner.Env{
		Storage: p.Storage,
		Addons:  p.Addons,
		Logger:  logger,
	}
	p.scanners = backend.NewSlot(scanner.NewRegistry(env), logger)
	p.storages = backend.NewSlot(storage.Registry(), logger)

	p.Reset()
	return p
}

// Scanner returns the active scanner, building it on first access
func (p *Pipeline) Scanner() (*scanner.Scanner, error) {
	return p.scanners.Get()
}

// SetScanner configures the scanner from an instance, a type name, a
// backend.Spec or a [name, options] tuple
func (p *Pipeline) SetScanner(value interface{}) error {
	return p.scanners.Set(value)
}

// DestroyScanner drops the active scanner. The next Scanner call builds a
// new one from the same definition.
func (p *Pipeline) DestroyScanner() {
	p.scanners.Destroy()
}

// Storage returns the active storage, building it on first access
func (p *Pipeline) Storage() (storage.Storage, error) {
	return p.storages.Get()
}

// SetStorage configures the storage the same way SetScanner does
func (p *Pipeline) SetStorage(value interface{}) error {
	return p.storages.Set(value)
}

// DestroyStorage drops the active storage
func (p *Pipeline) DestroyStorage() {
	p.storages.Destroy()
}

// Addons returns a copy of the addon names
func (p *Pipeline) Addons() []string {
	out := make([]string, len(p.addons))
	copy(out, p.addons)
	return out
}

// SetAddons replaces the addon list. Duplicates are dropped and every name
// must be registered. Scanners that already ran keep their addons.
func (p *Pipeline) SetAddons(names ...string) error {
	for _, name := range names {
		if _, err := scanner.LookupAddon(name); err != nil {
			return err
		}
	}

	p.addons = nil
	for _, name := range names {
		p.appendAddon(name)
	}
	return nil
}

// AddAddon appends name unless it is already in the list
func (p *Pipeline) AddAddon(name string) error {
	if _, err := scanner.LookupAddon(name); err != nil {
		return err
	}
	p.appendAddon(name)
	return nil
}

// RemoveAddon drops name from the list
func (p *Pipeline) RemoveAddon(name string) {
	kept := p.addons[:0]
	for _, existing := range p.addons {
		if existing != name {
			kept = append(kept, existing)
		}
	}
	p.addons = kept
}

func (p *Pipeline) appendAddon(name string) {
	for _, existing := range p.addons {
		if existing == name {
			return
		}
	}
	p.addons = append(p.addons, name)
}

// Reset restores the default addons and destroys both active instances.
// Backend definitions are kept.
func (p *Pipeline) Reset() {
	p.addons = append([]string(nil), DefaultAddons...)
	p.scanners.Destroy()
	p.storages.Destroy()
}

// Configure applies the scanner, storage and addon settings of cfg. A nil
// addon list keeps the current addons.
func (p *Pipeline) Configure(cfg *config.Config) error {
	if err := p.SetScanner(backend.Spec{Type: cfg.Scanner.Type, Options: cfg.Scanner.Options}); err != nil {
		return err
	}
	if err := p.SetStorage(backend.Spec{Type: cfg.Storage.Type, Options: cfg.Storage.Options}); err != nil {
		return err
	}
	if cfg.Addons != nil {
		if err := p.SetAddons(cfg.Addons...); err != nil {
			return err
		}
	}

	p.logger.WithFields(logrus.Fields{
		"scanner_type": cfg.Scanner.Type,
		"storage_type": cfg.Storage.Type,
		"addons":       p.addons,
	}).Debug("Pipeline configured")

	return nil
}
