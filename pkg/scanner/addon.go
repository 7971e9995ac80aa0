package scanner

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/backend"
	"github.com/sysdig/attachment-virus-scanner/pkg/metrics"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

// Built-in addon names
const (
	AddonRemoveInfected = "remove_infected"
	AddonTracing        = "tracing"
)

// Addon extends a scanner with hook callables. Attach runs once per scanner,
// on its first scan.
type Addon interface {
	Name() string
	Attach(s *Scanner) error
}

var addons = map[string]func() Addon{
	AddonRemoveInfected: func() Addon { return RemoveInfected{} },
	AddonTracing:        func() Addon { return NewTracing(nil) },
}

// RegisterAddon makes an addon available by name
func RegisterAddon(name string, factory func() Addon) {
	if name == "" || factory == nil {
		panic("scanner: invalid addon registration")
	}
	if _, dup := addons[name]; dup {
		panic(fmt.Sprintf("scanner: addon %s registered twice", name))
	}
	addons[name] = factory
}

// LookupAddon returns a fresh instance of the addon registered under name
func LookupAddon(name string) (Addon, error) {
	factory, ok := addons[name]
	if !ok {
		return nil, backend.NewNotFoundError(backend.KindAddon, name)
	}
	return factory(), nil
}

// AddonNames returns the registered addon names in sorted order
func AddonNames() []string {
	names := make([]string, 0, len(addons))
	for name := range addons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveInfected deletes an asset at its origin as soon as its scan reports
// a virus.
type RemoveInfected struct{}

func (RemoveInfected) Name() string {
	return AddonRemoveInfected
}

func (RemoveInfected) Attach(s *Scanner) error {
	return s.AfterScan(func(p *storage.Processable) error {
		if !s.errors.Contains(CodeVirusDetected) {
			return nil
		}

		if err := p.Remove(); err != nil {
			return fmt.Errorf("remove infected asset: %w", err)
		}

		metrics.RecordInfectedRemoved(p.Storage().Type())
		s.logger.WithFields(logrus.Fields{
			"scanner_type": s.typ,
			"storage_type": p.Storage().Type(),
		}).Warn("Removed infected asset")

		return nil
	})
}
