// Package backend keeps the pluggable scanner and storage implementations.
// A Registry maps symbolic type names to factories; a Slot holds the one
// active instance of a kind together with the definition it is rebuilt from.
package backend

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Kind names a backend category
type Kind string

const (
	KindScanner Kind = "scanner"
	KindStorage Kind = "storage"
	KindAddon   Kind = "addon"
)

// Instance is implemented by every backend a Slot can hold
type Instance interface {
	// Type returns the registered type name the instance was built from
	Type() string

	// Config returns the options the instance was built with
	Config() config.Options
}

// Factory constructs a backend from its options
type Factory[T Instance] func(opts config.Options, logger *logrus.Logger) (T, error)

// Registry is a static name → factory table for one backend kind
type Registry[T Instance] struct {
	kind      Kind
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry for kind
func NewRegistry[T Instance](kind Kind) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Kind returns the backend kind served by the registry
func (r *Registry[T]) Kind() Kind {
	return r.kind
}

// Register adds a factory under name. It panics on an empty name, a nil
// factory or a duplicate name; registration happens while wiring the program.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	if name == "" {
		panic(fmt.Sprintf("backend: empty %s type name", r.kind))
	}
	if factory == nil {
		panic(fmt.Sprintf("backend: nil factory for %s type %s", r.kind, name))
	}
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("backend: %s type %s registered twice", r.kind, name))
	}
	r.factories[name] = factory
}

// Lookup returns the factory registered under name
func (r *Registry[T]) Lookup(name string) (Factory[T], error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, notFound(r.kind, name)
	}
	return factory, nil
}

// Names returns the registered type names in sorted order
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
