package storage

import (
	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/resource"
)

// Stream handles in-memory streams by scanning a temporary copy
type Stream struct {
	Base
}

func NewStream(opts config.Options, logger *logrus.Logger) *Stream {
	return &Stream{Base: NewBase(TypeStream, opts, logger)}
}

func (s *Stream) Accept(res interface{}) bool {
	switch res.(type) {
	case *resource.Stream, []*resource.Stream:
		return true
	default:
		return false
	}
}

// Changed is always true; a stream carries no change tracking
func (s *Stream) Changed(Record, string) bool {
	return true
}

func (s *Stream) Process(res interface{}, visit func(*Processable) error) error {
	return EachAsset(s, res, visit)
}

func (s *Stream) AssetPath(asset interface{}, withPath func(path string) error) error {
	stream, ok := asset.(*resource.Stream)
	if !ok || stream == nil || stream.Reader == nil || stream.Discarded() {
		return nil
	}
	return s.Materialize(stream.Reader, stream.Extension(), withPath)
}

// AssetRemove discards the stream so it is never stored
func (s *Stream) AssetRemove(asset interface{}) error {
	stream, ok := asset.(*resource.Stream)
	if !ok || stream == nil {
		return nil
	}
	return stream.Discard()
}
