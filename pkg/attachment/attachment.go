package attachment

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// Blob is stored file content plus its metadata
type Blob struct {
	Key      string
	Filename string
	ByteSize int64

	service Service
}

// NewBlob uploads r to service and returns the blob describing it
func NewBlob(service Service, filename string, r io.Reader) (*Blob, error) {
	res, err := service.Put(r)
	if err != nil {
		return nil, fmt.Errorf("upload blob %q: %w", filename, err)
	}
	return &Blob{Key: res.Key, Filename: filename, ByteSize: res.Size, service: service}, nil
}

// Extension returns the filename extension including the dot, or ""
func (b *Blob) Extension() string {
	return filepath.Ext(b.Filename)
}

// Open opens the blob bytes for reading. Caller must close the ReadCloser.
func (b *Blob) Open() (io.ReadCloser, error) {
	if b.service == nil {
		return nil, ErrBlobNotFound
	}
	rc, _, err := b.service.Open(b.Key)
	return rc, err
}

// Download streams the blob bytes into w
func (b *Blob) Download(w io.Writer) error {
	rc, err := b.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("download blob %s: %w", b.Key, err)
	}
	return nil
}

// Attachment links a named record attribute to a blob
type Attachment struct {
	Name string
	Blob *Blob

	owner  owner
	purged bool
}

// owner is the One or Many collection an attachment belongs to
type owner interface {
	detach(a *Attachment)
}

// Purged reports whether Purge has run
func (a *Attachment) Purged() bool {
	return a.purged
}

// Purge detaches the attachment from its owner and releases its blob
func (a *Attachment) Purge() error {
	if a.purged {
		return nil
	}
	a.purged = true

	if a.owner != nil {
		a.owner.detach(a)
		a.owner = nil
	}

	if a.Blob == nil || a.Blob.service == nil {
		return nil
	}
	if err := a.Blob.service.Release(a.Blob.Key); err != nil {
		return fmt.Errorf("purge attachment %s: %w", a.Name, err)
	}
	return nil
}

// One is a single-attachment attribute
type One struct {
	Name       string
	Attachment *Attachment
}

// NewOne creates an empty single-attachment attribute
func NewOne(name string) *One {
	return &One{Name: name}
}

// Attach replaces the current attachment with one pointing at blob
func (o *One) Attach(blob *Blob) *Attachment {
	a := &Attachment{Name: o.Name, Blob: blob, owner: o}
	o.Attachment = a
	return a
}

// Attached reports whether an attachment is present
func (o *One) Attached() bool {
	return o != nil && o.Attachment != nil
}

func (o *One) detach(a *Attachment) {
	if o.Attachment == a {
		o.Attachment = nil
	}
}

// Many is a multi-attachment attribute
type Many struct {
	Name        string
	Attachments []*Attachment
}

// NewMany creates an empty multi-attachment attribute
func NewMany(name string) *Many {
	return &Many{Name: name}
}

// Attach appends an attachment pointing at blob
func (m *Many) Attach(blob *Blob) *Attachment {
	a := &Attachment{Name: m.Name, Blob: blob, owner: m}
	m.Attachments = append(m.Attachments, a)
	return a
}

// Attached reports whether any attachment is present
func (m *Many) Attached() bool {
	return m != nil && len(m.Attachments) > 0
}

func (m *Many) detach(a *Attachment) {
	for i, existing := range m.Attachments {
		if existing == a {
			m.Attachments = append(m.Attachments[:i:i], m.Attachments[i+1:]...)
			return
		}
	}
}

// IsNotFound reports whether err means the blob bytes are missing
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBlobNotFound)
}
