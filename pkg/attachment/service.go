// Package attachment models blob attachments: records own One or Many
// attachments, each pointing at a Blob whose bytes live in a Service.
//
// Blobs are stored content-addressed at:
//
//	{root}/blobs/{sha256[0:2]}/{sha256[2:4]}/{sha256}
//
// Identical uploads share one blob on disk. The service counts references per
// key; Release deletes the bytes once the last reference is gone.
package attachment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrBlobNotFound is returned when a key has no stored blob
var ErrBlobNotFound = errors.New("blob not found")

// Service stores blob bytes
type Service interface {
	// Put streams r into the store and takes a reference on the resulting key
	Put(r io.Reader) (PutResult, error)

	// Open opens a blob for streaming. Caller must close the returned ReadCloser.
	Open(key string) (io.ReadCloser, int64, error)

	// Release drops one reference on key, deleting the bytes at zero
	Release(key string) error

	// Exists reports whether a blob is stored under key
	Exists(key string) bool
}

// PutResult is returned by Service.Put
type PutResult struct {
	Key   string // hex-encoded SHA-256 of the blob
	Size  int64  // total bytes received from the caller
	IsNew bool   // false when an identical blob was already stored
}

// DiskService is a content-addressable blob store backed by the local filesystem
type DiskService struct {
	root string

	mu   sync.Mutex
	refs map[string]int
}

// NewDiskService creates a DiskService rooted at root, creating the directory if needed
func NewDiskService(root string) (*DiskService, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %q: %w", root, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	return &DiskService{root: absRoot, refs: make(map[string]int)}, nil
}

// Put streams r to a temp file while hashing, then moves it into place or
// discards it when the blob already exists.
func (d *DiskService) Put(r io.Reader) (PutResult, error) {
	tmpDir := filepath.Join(d.root, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return PutResult{}, fmt.Errorf("blob: mkdir tmp: %w", err)
	}

	tmp, err := os.CreateTemp(tmpDir, ".blob-*")
	if err != nil {
		return PutResult{}, fmt.Errorf("blob: create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	n, werr := io.Copy(tmp, io.TeeReader(r, hasher))
	cerr := tmp.Close()

	if werr != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("blob: stream: %w", werr)
	}
	if cerr != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("blob: flush: %w", cerr)
	}

	key := hex.EncodeToString(hasher.Sum(nil))
	blobAbs := d.path(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(blobAbs); err == nil {
		// Dedup hit; the blob already exists
		os.Remove(tmpPath) //nolint:errcheck
		d.refs[key]++
		return PutResult{Key: key, Size: n, IsNew: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(blobAbs), 0o750); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("blob: mkdir blob dir: %w", err)
	}
	if err := os.Rename(tmpPath, blobAbs); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return PutResult{}, fmt.Errorf("blob: rename: %w", err)
	}

	d.refs[key]++
	return PutResult{Key: key, Size: n, IsNew: true}, nil
}

// Open opens a blob for streaming. Caller must close the returned ReadCloser.
func (d *DiskService) Open(key string) (io.ReadCloser, int64, error) {
	if !validKey(key) {
		return nil, 0, ErrBlobNotFound
	}
	f, err := os.Open(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrBlobNotFound
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Release drops one reference on key. The blob file is removed when no
// references remain. Releasing an unknown key is a no-op.
func (d *DiskService) Release(key string) error {
	if !validKey(key) {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refs[key] > 1 {
		d.refs[key]--
		return nil
	}
	delete(d.refs, key)

	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob with the given key is stored
func (d *DiskService) Exists(key string) bool {
	if !validKey(key) {
		return false
	}
	_, err := os.Stat(d.path(key))
	return err == nil
}

// References returns the reference count held for key
func (d *DiskService) References(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs[key]
}

func (d *DiskService) path(key string) string {
	return filepath.Join(d.root, "blobs", key[0:2], key[2:4], key)
}

// validKey guards the path layout against short or crafted keys
func validKey(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
