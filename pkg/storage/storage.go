// Package storage adapts the places a scanned file can live in (paths on
// disk, in-memory streams, blob attachments, uploaders) to one interface.
// A storage turns a resource into Processables; each Processable yields a
// local path for the scanner and can remove the asset at its origin.
package storage

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/backend"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Registered storage type names
const (
	TypeFilepath = "filepath"
	TypeStream   = "stream"
	TypeBlob     = "blob"
	TypeUpload   = "upload"
	TypeMulti    = "multi"
)

// ErrNotImplemented is wrapped by ContractError
var ErrNotImplemented = errors.New("operation not implemented")

// Storage is implemented by every storage adapter
type Storage interface {
	backend.Instance

	// Accept reports whether the adapter understands resource
	Accept(resource interface{}) bool

	// Changed reports whether attribute of record needs scanning
	Changed(record Record, attribute string) bool

	// Process calls visit once per asset contained in resource
	Process(resource interface{}, visit func(*Processable) error) error

	// AssetPath calls withPath with a local path holding the asset bytes.
	// Temporary copies are removed once withPath returns.
	AssetPath(asset interface{}, withPath func(path string) error) error

	// AssetRemove removes the asset at its origin
	AssetRemove(asset interface{}) error
}

// Record is the model object a validated attribute belongs to
type Record interface {
	// Value returns the resource stored under attribute
	Value(attribute string) interface{}

	// Changed reports whether any attribute of the record changed
	Changed() bool
}

// AttributeChangeTracker is implemented by records that track changes per attribute
type AttributeChangeTracker interface {
	AttributeChanged(attribute string) bool
}

// ContractError is returned for operations an adapter does not provide
type ContractError struct {
	Backend   string
	Operation string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("storage %s does not implement %s", e.Backend, e.Operation)
}

func (e *ContractError) Unwrap() error {
	return ErrNotImplemented
}

var registry = backend.NewRegistry[Storage](backend.KindStorage)

func init() {
	registry.Register(TypeFilepath, func(opts config.Options, logger *logrus.Logger) (Storage, error) {
		return NewFilepath(opts, logger), nil
	})
	registry.Register(TypeStream, func(opts config.Options, logger *logrus.Logger) (Storage, error) {
		return NewStream(opts, logger), nil
	})
	registry.Register(TypeBlob, func(opts config.Options, logger *logrus.Logger) (Storage, error) {
		return NewBlob(opts, logger), nil
	})
	registry.Register(TypeUpload, func(opts config.Options, logger *logrus.Logger) (Storage, error) {
		return NewUpload(opts, logger), nil
	})
	registry.Register(TypeMulti, func(opts config.Options, logger *logrus.Logger) (Storage, error) {
		return NewMulti(opts, logger)
	})
}

// Registry returns the storage type registry
func Registry() *backend.Registry[Storage] {
	return registry
}

// New builds the storage registered under name
func New(name string, opts config.Options, logger *logrus.Logger) (Storage, error) {
	factory, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return factory(opts, logger)
}

// changedByTracker prefers per-attribute tracking and falls back to fallback
func changedByTracker(record Record, attribute string, fallback func() bool) bool {
	if tracker, ok := record.(AttributeChangeTracker); ok {
		return tracker.AttributeChanged(attribute)
	}
	return fallback()
}
