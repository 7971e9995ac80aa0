package scanner

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Detector is the engine behind a scanner. RunScan appends at most one code
// for path: CodeVirusDetected, CodeFileNotFound or CodeClientError. An engine
// failure must never look like a clean result.
type Detector interface {
	// Executable reports whether the engine can run on this host
	Executable() bool

	// RunScan checks the file at path and records the outcome in errs
	RunScan(ctx context.Context, path string, errs *Errors)
}

// DetectorFactory builds a detector from merged scanner options
type DetectorFactory func(opts config.Options, logger *logrus.Logger) (Detector, error)

type detectorEntry struct {
	factory  DetectorFactory
	defaults config.Options
}

var detectors = map[string]detectorEntry{}

// RegisterDetector makes a detector available as a scanner type. defaults are
// merged under the options given at construction.
func RegisterDetector(name string, defaults config.Options, factory DetectorFactory) {
	if name == "" || factory == nil {
		panic("scanner: invalid detector registration")
	}
	if _, dup := detectors[name]; dup {
		panic(fmt.Sprintf("scanner: detector %s registered twice", name))
	}
	detectors[name] = detectorEntry{factory: factory, defaults: defaults.Clone()}
}

// DetectorTypes returns the registered scanner type names in sorted order
func DetectorTypes() []string {
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
