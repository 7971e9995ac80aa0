package backend

import (
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/metrics"
)

// Spec selects a backend by type name with optional options
type Spec struct {
	Type    string
	Options config.Options
}

// Definition is what a Slot rebuilds its instance from
type Definition struct {
	Type    string
	Options config.Options
}

// Slot holds at most one active backend of a kind. The instance is built
// lazily from the current definition and rebuilt after Destroy.
//
// Slots are not safe for concurrent use; reconfigure them while wiring.
type Slot[T Instance] struct {
	registry *Registry[T]
	logger   *logrus.Logger

	def      *Definition
	instance T
	active   bool
}

// NewSlot creates an unconfigured slot backed by registry
func NewSlot[T Instance](registry *Registry[T], logger *logrus.Logger) *Slot[T] {
	return &Slot[T]{
		registry: registry,
		logger:   logger,
	}
}

// Set configures the slot. Accepted values are a ready-made instance of T
// (adopted as the active instance), a type name, a Spec, or a tuple
// []interface{}{name, options} whose options element is optional. An adopted
// instance must report a registered type so Get can rebuild it after Destroy.
func (s *Slot[T]) Set(value interface{}) error {
	kind := s.registry.Kind()

	if instance, ok := value.(T); ok {
		if isNil(value) {
			return invalidInput(kind, "invalid %s provided: nil instance", kind)
		}
		// The instance is rebuilt from its registered type after Destroy
		if _, err := s.registry.Lookup(instance.Type()); err != nil {
			return err
		}

		s.instance = instance
		s.active = true
		s.def = &Definition{Type: instance.Type(), Options: instance.Config().Clone()}

		s.logger.WithFields(logrus.Fields{
			"kind": kind,
			"type": instance.Type(),
		}).Debug("Backend instance adopted")
		return nil
	}

	var def Definition

	switch v := value.(type) {
	case string:
		def = Definition{Type: v, Options: config.Options{}}
	case Spec:
		def = Definition{Type: v.Type, Options: v.Options.Clone()}
	case *Spec:
		if v == nil {
			return invalidInput(kind, "invalid %s provided", kind)
		}
		def = Definition{Type: v.Type, Options: v.Options.Clone()}
	case []interface{}:
		parsed, err := parseTuple(kind, v)
		if err != nil {
			return err
		}
		def = parsed
	default:
		return invalidInput(kind, "invalid %s provided", kind)
	}

	if def.Type == "" {
		return invalidInput(kind, "invalid %s type: empty name", kind)
	}
	if _, err := s.registry.Lookup(def.Type); err != nil {
		return err
	}

	// Discard the current instance; the next Get builds the new type
	s.Destroy()
	s.def = &def

	s.logger.WithFields(logrus.Fields{
		"kind": kind,
		"type": def.Type,
	}).Debug("Backend definition set")

	return nil
}

// isNil reports a nil value, including a typed nil pointer held in an interface
func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// parseTuple reads the [name, options] form
func parseTuple(kind Kind, tuple []interface{}) (Definition, error) {
	if len(tuple) == 0 {
		return Definition{}, invalidInput(kind, "invalid %s provided", kind)
	}

	name, ok := tuple[0].(string)
	if !ok {
		return Definition{}, invalidInput(kind, "invalid %s type: %v", kind, tuple[0])
	}

	opts := config.Options{}
	if len(tuple) > 1 {
		parsed, ok := config.AsOptions(tuple[1])
		if !ok {
			return Definition{}, invalidInput(kind, "invalid %s options for %s", kind, name)
		}
		opts = parsed.Clone()
	}

	return Definition{Type: name, Options: opts}, nil
}

// Get returns the active instance, constructing it on first access
func (s *Slot[T]) Get() (T, error) {
	if s.active {
		return s.instance, nil
	}

	var zero T
	if s.def == nil {
		return zero, notConfigured(s.registry.Kind())
	}

	factory, err := s.registry.Lookup(s.def.Type)
	if err != nil {
		return zero, err
	}

	instance, err := factory(s.def.Options.Clone(), s.logger)
	if err != nil {
		return zero, err
	}

	s.instance = instance
	s.active = true

	metrics.RecordBackendConstruction(string(s.registry.Kind()), s.def.Type)
	s.logger.WithFields(logrus.Fields{
		"kind": s.registry.Kind(),
		"type": s.def.Type,
	}).Info("Backend constructed")

	return instance, nil
}

// Destroy discards the active instance and keeps the definition
func (s *Slot[T]) Destroy() {
	var zero T
	s.instance = zero
	s.active = false
}

// Definition returns the current definition, if any
func (s *Slot[T]) Definition() (Definition, bool) {
	if s.def == nil {
		return Definition{}, false
	}
	return Definition{Type: s.def.Type, Options: s.def.Options.Clone()}, true
}

// LookupType resolves a type name through the slot's registry
func (s *Slot[T]) LookupType(name string) (Factory[T], error) {
	return s.registry.Lookup(name)
}
