package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Multi dispatches each resource to the first configured child storage that
// accepts it. Children are listed under the "storages" option; an entry is a
// type name, a [name, options] pair, a {type, options} map or a Storage.
type Multi struct {
	Base
	storages []Storage
}

func NewMulti(opts config.Options, logger *logrus.Logger) (*Multi, error) {
	m := &Multi{Base: NewBase(TypeMulti, opts, logger)}

	for i, entry := range m.config.List("storages") {
		child, err := m.buildChild(entry)
		if err != nil {
			return nil, fmt.Errorf("multi storage entry %d: %w", i, err)
		}
		m.storages = append(m.storages, child)
	}

	m.logger.WithFields(logrus.Fields{
		"storages": m.childTypes(),
	}).Debug("Multi storage configured")

	return m, nil
}

func (m *Multi) buildChild(entry interface{}) (Storage, error) {
	switch e := entry.(type) {
	case Storage:
		return e, nil
	case string:
		return m.newChild(e, nil)
	case []interface{}:
		if len(e) == 0 {
			return nil, fmt.Errorf("empty storage entry")
		}
		name, ok := e[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid storage type: %v", e[0])
		}
		var opts config.Options
		if len(e) > 1 {
			if opts, ok = config.AsOptions(e[1]); !ok {
				return nil, fmt.Errorf("invalid options for storage %s", name)
			}
		}
		return m.newChild(name, opts)
	default:
		spec, ok := config.AsOptions(entry)
		if !ok || spec.String("type", "") == "" {
			return nil, fmt.Errorf("invalid storage entry: %v", entry)
		}
		name := spec.String("type", "")
		opts, ok := config.AsOptions(spec["options"])
		if !ok {
			return nil, fmt.Errorf("invalid options for storage %s", name)
		}
		return m.newChild(name, opts)
	}
}

// newChild builds a child storage; children inherit the multi tmp_dir
func (m *Multi) newChild(name string, opts config.Options) (Storage, error) {
	defaults := config.Options{}
	if m.config.Has("tmp_dir") {
		defaults["tmp_dir"] = m.tmpDir
	}
	return New(name, config.Merge(defaults, opts), m.logger)
}

// Storages returns the configured children in dispatch order
func (m *Multi) Storages() []Storage {
	return append([]Storage(nil), m.storages...)
}

func (m *Multi) childTypes() []string {
	types := make([]string, 0, len(m.storages))
	for _, s := range m.storages {
		types = append(types, s.Type())
	}
	return types
}

// storageFor returns the first child accepting resource, or nil
func (m *Multi) storageFor(resource interface{}) Storage {
	for _, s := range m.storages {
		if s.Accept(resource) {
			return s
		}
	}
	return nil
}

func (m *Multi) Accept(resource interface{}) bool {
	return m.storageFor(resource) != nil
}

// Changed asks the child accepting the attribute's value; false when none does
func (m *Multi) Changed(record Record, attribute string) bool {
	s := m.storageFor(record.Value(attribute))
	if s == nil {
		return false
	}
	return s.Changed(record, attribute)
}

func (m *Multi) Process(resource interface{}, visit func(*Processable) error) error {
	if visit == nil {
		return nil
	}
	s := m.storageFor(resource)
	if s == nil {
		return nil
	}
	return s.Process(resource, visit)
}

// AssetPath is never called: processables belong to the child storages
func (m *Multi) AssetPath(interface{}, func(string) error) error {
	return &ContractError{Backend: TypeMulti, Operation: "asset path"}
}

func (m *Multi) AssetRemove(interface{}) error {
	return &ContractError{Backend: TypeMulti, Operation: "asset remove"}
}
