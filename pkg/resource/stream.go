// Package resource holds the in-memory asset shapes a scan can be given
// directly, as opposed to files on disk or framework attachments.
package resource

import (
	"bytes"
	"io"
	"path/filepath"
)

// Stream is a named byte stream. The name only supplies the extension of the
// temporary copy made for scanning.
type Stream struct {
	Name   string
	Reader io.Reader

	discarded bool
}

// NewStream wraps r under name
func NewStream(name string, r io.Reader) *Stream {
	return &Stream{Name: name, Reader: r}
}

// FromBytes builds a stream over an in-memory buffer
func FromBytes(name string, data []byte) *Stream {
	return NewStream(name, bytes.NewReader(data))
}

// Extension returns the extension of Name including the dot, or ""
func (s *Stream) Extension() string {
	return filepath.Ext(s.Name)
}

// Discard marks the stream as removed and closes the reader when it can be
// closed. The stream must not be read again.
func (s *Stream) Discard() error {
	if s.discarded {
		return nil
	}
	s.discarded = true

	if c, ok := s.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Discarded reports whether Discard has run
func (s *Stream) Discarded() bool {
	return s.discarded
}
