package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/attachment"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Blob handles blob attachments. The blob may live on a remote service, so
// it is downloaded to a temporary file for scanning.
type Blob struct {
	Base
}

func NewBlob(opts config.Options, logger *logrus.Logger) *Blob {
	return &Blob{Base: NewBase(TypeBlob, opts, logger)}
}

func (b *Blob) Accept(resource interface{}) bool {
	switch resource.(type) {
	case *attachment.One, *attachment.Many:
		return true
	default:
		return false
	}
}

// Changed is always true: attachment changes do not mark the record dirty
func (b *Blob) Changed(Record, string) bool {
	return true
}

func (b *Blob) Process(resource interface{}, visit func(*Processable) error) error {
	if visit == nil {
		return nil
	}

	switch r := resource.(type) {
	case *attachment.One:
		if !r.Attached() {
			return nil
		}
		return visit(NewProcessable(b, r.Attachment))
	case *attachment.Many:
		if !r.Attached() {
			return nil
		}
		// Purging detaches from the collection, so iterate a snapshot
		attachments := append([]*attachment.Attachment(nil), r.Attachments...)
		for _, a := range attachments {
			if err := visit(NewProcessable(b, a)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Blob) AssetPath(asset interface{}, withPath func(path string) error) error {
	a, ok := asset.(*attachment.Attachment)
	if !ok || a == nil || a.Blob == nil || withPath == nil {
		return nil
	}

	rc, err := a.Blob.Open()
	if err != nil {
		return fmt.Errorf("download blob %s: %w", a.Blob.Key, err)
	}
	defer rc.Close()

	return b.Materialize(rc, a.Blob.Extension(), withPath)
}

func (b *Blob) AssetRemove(asset interface{}) error {
	a, ok := asset.(*attachment.Attachment)
	if !ok || a == nil {
		return nil
	}
	return a.Purge()
}
