// Package scanner runs a detection engine over every asset of a resource and
// folds the outcomes into one verdict plus a deduplicated list of error codes.
//
// Callers and addons can hook into two points of a scan: "process scan"
// wraps the whole resource, "scan" wraps each asset once a local path for it
// exists.
package scanner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/backend"
	"github.com/sysdig/attachment-virus-scanner/pkg/callbacks"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/metrics"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

// Hook names a scan phase callables can be attached to
type Hook int

const (
	// HookProcessScan wraps the scan of a whole resource
	HookProcessScan Hook = iota
	// HookScan wraps the scan of one asset
	HookScan
)

func (h Hook) String() string {
	switch h {
	case HookProcessScan:
		return "process_scan"
	case HookScan:
		return "scan"
	default:
		return "unknown"
	}
}

// Env supplies what a scanner reads from its owner at scan time
type Env struct {
	// Storage returns the storage resources are processed with
	Storage func() (storage.Storage, error)

	// Addons returns the addon names applied on the first scan
	Addons func() []string

	Logger *logrus.Logger
}

// Scanner is a stateful scan runner around one Detector. A Scanner runs one
// scan at a time and is not safe for concurrent use.
type Scanner struct {
	typ      string
	config   config.Options
	detector Detector
	env      Env
	logger   *logrus.Logger

	hooks     *callbacks.Engine[Hook]
	finishers []func(infected bool, err error)

	available *bool
	ready     bool
	applied   []string

	ctx      context.Context
	scanning bool
	errors   Errors
}

// New builds a scanner of a registered detector type. opts are merged over
// force_availability=false and the detector defaults.
func New(typ string, opts config.Options, env Env) (*Scanner, error) {
	entry, ok := detectors[typ]
	if !ok {
		return nil, backend.NewNotFoundError(backend.KindScanner, typ)
	}

	cfg := config.Merge(config.Merge(config.Options{"force_availability": false}, entry.defaults), opts)

	detector, err := entry.factory(cfg, envLogger(env))
	if err != nil {
		return nil, err
	}

	return NewWithDetector(typ, cfg, detector, env), nil
}

// NewWithDetector builds a scanner around a ready detector
func NewWithDetector(typ string, opts config.Options, detector Detector, env Env) *Scanner {
	s := &Scanner{
		typ:      typ,
		config:   opts.Clone(),
		detector: detector,
		env:      env,
		logger:   envLogger(env),
		hooks:    callbacks.New[Hook](),
	}

	s.hooks.Define(HookProcessScan)
	s.hooks.Define(HookScan)

	if s.config.Bool("force_availability") {
		available := true
		s.available = &available
	} else {
		s.Available()
	}

	return s
}

func envLogger(env Env) *logrus.Logger {
	if env.Logger != nil {
		return env.Logger
	}
	return logrus.StandardLogger()
}

func (s *Scanner) Type() string {
	return s.typ
}

func (s *Scanner) Config() config.Options {
	return s.config.Clone()
}

// Detector returns the engine the scanner runs
func (s *Scanner) Detector() Detector {
	return s.detector
}

// Available reports whether the engine can run. The probe runs once.
func (s *Scanner) Available() bool {
	if s.available != nil {
		return *s.available
	}

	available := s.detector.Executable()
	s.available = &available

	s.logger.WithFields(logrus.Fields{
		"scanner_type": s.typ,
		"available":    available,
	}).Debug("Scanner availability probed")

	return available
}

// Errors returns the error codes of the last scan. Inside a scan hook it holds
// the codes of the asset being scanned.
func (s *Scanner) Errors() Errors {
	return append(Errors(nil), s.errors...)
}

// AppliedAddons returns the addon names applied to this scanner
func (s *Scanner) AppliedAddons() []string {
	return append([]string(nil), s.applied...)
}

// Context returns the context of the running scan
func (s *Scanner) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Logger returns the scanner logger
func (s *Scanner) Logger() *logrus.Logger {
	return s.logger
}

// BeforeProcessScan runs fn with the resource before it is processed
func (s *Scanner) BeforeProcessScan(fn func(resource interface{}) error) error {
	return s.hooks.Before(HookProcessScan, resourceCallable(fn))
}

// AfterProcessScan runs fn with the resource after all its assets were scanned
func (s *Scanner) AfterProcessScan(fn func(resource interface{}) error) error {
	return s.hooks.After(HookProcessScan, resourceCallable(fn))
}

// BeforeScan runs fn before each asset is scanned
func (s *Scanner) BeforeScan(fn func(p *storage.Processable) error) error {
	return s.hooks.Before(HookScan, processableCallable(fn))
}

// AfterScan runs fn after each asset is scanned. Errors() then holds that
// asset's codes only.
func (s *Scanner) AfterScan(fn func(p *storage.Processable) error) error {
	return s.hooks.After(HookScan, processableCallable(fn))
}

// OnFinish runs fn when a scan call ends, whether it failed or not
func (s *Scanner) OnFinish(fn func(infected bool, err error)) {
	s.finishers = append(s.finishers, fn)
}

func resourceCallable(fn func(interface{}) error) callbacks.Callable {
	return func(args ...interface{}) error {
		return fn(args[0])
	}
}

func processableCallable(fn func(*storage.Processable) error) callbacks.Callable {
	return func(args ...interface{}) error {
		return fn(args[0].(*storage.Processable))
	}
}

// Virus scans resource with a background context
func (s *Scanner) Virus(resource interface{}) (bool, error) {
	return s.VirusContext(context.Background(), resource)
}

// VirusContext scans every asset of resource and reports whether any error
// code was produced. The codes are available from Errors afterwards. A
// returned error means the scan did not complete.
func (s *Scanner) VirusContext(ctx context.Context, resource interface{}) (infected bool, err error) {
	if s.scanning {
		return false, ErrScanInProgress
	}
	s.scanning = true
	s.ctx = ctx

	defer func() {
		for _, fn := range s.finishers {
			fn(infected, err)
		}
		s.scanning = false
		s.ctx = nil
	}()

	if err := s.prepare(); err != nil {
		return false, err
	}

	st, err := s.storage()
	if err != nil {
		return false, err
	}

	start := time.Now()
	s.errors = nil

	err = s.hooks.Run(HookProcessScan, func() error {
		return st.Process(resource, func(p *storage.Processable) error {
			return s.scan(ctx, p)
		})
	}, resource)

	s.errors = s.errors.Unique()
	infected = len(s.errors) > 0

	fields := logrus.Fields{
		"scanner_type": s.typ,
		"storage_type": st.Type(),
		"infected":     infected,
		"errors":       s.errors.Strings(),
		"duration":     time.Since(start),
	}

	if err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Resource scan failed")
		return infected, err
	}

	metrics.RecordScan(s.typ, infected, time.Since(start).Seconds())
	s.logger.WithFields(fields).Info("Resource scanned")

	return infected, nil
}

// scan runs the detector for one asset with an error list of its own. The
// codes gathered so far are put back in front when the asset is done.
func (s *Scanner) scan(ctx context.Context, p *storage.Processable) error {
	before := s.errors
	s.errors = nil

	defer func() {
		merged := make(Errors, 0, len(before)+len(s.errors))
		merged = append(merged, before...)
		s.errors = append(merged, s.errors...)
	}()

	metrics.RecordAssetProcessed(p.Storage().Type())

	return p.Path(func(path string) error {
		return s.hooks.Run(HookScan, func() error {
			s.detector.RunScan(ctx, path, &s.errors)

			for _, code := range s.errors {
				metrics.RecordDetection(s.typ, string(code))
			}
			s.logger.WithFields(logrus.Fields{
				"scanner_type": s.typ,
				"path":         path,
				"errors":       s.errors.Strings(),
			}).Debug("Asset scanned")

			return nil
		}, p)
	})
}

func (s *Scanner) storage() (storage.Storage, error) {
	if s.env.Storage == nil {
		return nil, backend.NewNotConfiguredError(backend.KindStorage)
	}
	return s.env.Storage()
}

// prepare applies the configured addons on the first scan
func (s *Scanner) prepare() error {
	if s.ready {
		return nil
	}

	var names []string
	if s.env.Addons != nil {
		names = s.env.Addons()
	}

	addons := make([]Addon, 0, len(names))
	for _, name := range names {
		addon, err := LookupAddon(name)
		if err != nil {
			return err
		}
		addons = append(addons, addon)
	}

	for _, addon := range addons {
		if err := addon.Attach(s); err != nil {
			return err
		}
	}

	s.ready = true
	s.applied = names

	s.logger.WithFields(logrus.Fields{
		"scanner_type": s.typ,
		"addons":       names,
	}).Debug("Scanner addons applied")

	return nil
}
