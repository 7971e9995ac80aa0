package storage

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Filepath handles plain paths and open files on the local disk
type Filepath struct {
	Base
}

func NewFilepath(opts config.Options, logger *logrus.Logger) *Filepath {
	return &Filepath{Base: NewBase(TypeFilepath, opts, logger)}
}

func (f *Filepath) Accept(resource interface{}) bool {
	switch r := resource.(type) {
	case string, *os.File, []string, []*os.File:
		return true
	case []interface{}:
		for _, item := range r {
			switch item.(type) {
			case string, *os.File:
			default:
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Changed uses the attribute tracker when the record has one, else the
// record-level dirty flag.
func (f *Filepath) Changed(record Record, attribute string) bool {
	return changedByTracker(record, attribute, record.Changed)
}

func (f *Filepath) Process(resource interface{}, visit func(*Processable) error) error {
	return EachAsset(f, resource, visit)
}

func (f *Filepath) AssetPath(asset interface{}, withPath func(path string) error) error {
	if withPath == nil {
		return nil
	}
	path := filePath(asset)
	if path == "" {
		return nil
	}
	return withPath(path)
}

// AssetRemove deletes the file when the path names a regular file
func (f *Filepath) AssetRemove(asset interface{}) error {
	path := filePath(asset)
	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	return os.Remove(path)
}

func filePath(asset interface{}) string {
	switch a := asset.(type) {
	case string:
		return a
	case *os.File:
		if a == nil {
			return ""
		}
		return a.Name()
	default:
		return ""
	}
}
