package storage

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/upload"
)

// Upload handles uploader objects. Locally cached files are scanned in
// place; remote files are copied to a temporary file first.
type Upload struct {
	Base
}

func NewUpload(opts config.Options, logger *logrus.Logger) *Upload {
	return &Upload{Base: NewBase(TypeUpload, opts, logger)}
}

func (u *Upload) Accept(resource interface{}) bool {
	switch r := resource.(type) {
	case *upload.Uploader:
		return true
	case []*upload.Uploader:
		return true
	case []interface{}:
		for _, item := range r {
			if _, ok := item.(*upload.Uploader); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Changed uses the attribute tracker when present; otherwise the upload is
// assumed changed.
func (u *Upload) Changed(record Record, attribute string) bool {
	return changedByTracker(record, attribute, func() bool { return true })
}

func (u *Upload) Process(resource interface{}, visit func(*Processable) error) error {
	return EachAsset(u, resource, visit)
}

func (u *Upload) AssetPath(asset interface{}, withPath func(path string) error) error {
	uploader, ok := asset.(*upload.Uploader)
	if !ok || withPath == nil || !uploader.Present() {
		return nil
	}

	if local, ok := uploader.File().(*upload.LocalFile); ok {
		if local.Path == "" {
			return nil
		}
		return withPath(local.Path)
	}

	file := uploader.File()
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", file.Filename(), err)
	}
	defer rc.Close()

	return u.Materialize(rc, filepath.Ext(file.Filename()), withPath)
}

// AssetRemove deletes a remote file at its origin, or a local file together
// with its cache directory.
func (u *Upload) AssetRemove(asset interface{}) error {
	uploader, ok := asset.(*upload.Uploader)
	if !ok || !uploader.Present() {
		return nil
	}
	return uploader.Remove()
}
