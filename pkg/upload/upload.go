// Package upload models uploader objects: a record attribute backed by a file
// that is either cached on the local disk or stored on a remote HTTP origin.
package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrNoFile is returned when an uploader holds no file
var ErrNoFile = errors.New("uploader has no file")

// File is the stored file behind an uploader
type File interface {
	// Filename is the original file name, used for its extension
	Filename() string

	// Open returns the file contents. Caller must close it.
	Open() (io.ReadCloser, error)

	// Delete removes the file from where it is stored
	Delete() error
}

// Uploader wraps the stored file of one record attribute
type Uploader struct {
	file File
}

// New creates an uploader holding file (may be nil)
func New(file File) *Uploader {
	return &Uploader{file: file}
}

// File returns the stored file, or nil
func (u *Uploader) File() File {
	if u == nil {
		return nil
	}
	return u.file
}

// Present reports whether a file is stored
func (u *Uploader) Present() bool {
	return u.File() != nil
}

// Remove deletes the stored file and forgets it
func (u *Uploader) Remove() error {
	if u.file == nil {
		return ErrNoFile
	}
	if err := u.file.Delete(); err != nil {
		return err
	}
	u.file = nil
	return nil
}

// LocalFile is an upload cached on the local disk
type LocalFile struct {
	Path string
}

// NewLocalFile creates a local file reference
func NewLocalFile(path string) *LocalFile {
	return &LocalFile{Path: path}
}

func (f *LocalFile) Filename() string {
	return filepath.Base(f.Path)
}

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Delete removes the file, then its cache directory when that is left empty
func (f *LocalFile) Delete() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload %s: %w", f.Path, err)
	}

	dir := filepath.Dir(f.Path)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload cache dir %s: %w", dir, err)
	}
	return nil
}

// RemoteFile is an upload stored on an HTTP origin. GET reads it and DELETE
// removes it.
type RemoteFile struct {
	URL  string
	Name string

	client *http.Client
}

// NewRemoteFile creates a remote file reference. A nil client gets a default
// client with a 30 second timeout.
func NewRemoteFile(url, name string, client *http.Client) *RemoteFile {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteFile{URL: url, Name: name, client: client}
}

func (f *RemoteFile) Filename() string {
	return f.Name
}

func (f *RemoteFile) Open() (io.ReadCloser, error) {
	resp, err := f.client.Get(f.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch upload %s: %w", f.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch upload %s: status %d", f.URL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *RemoteFile) Delete() error {
	req, err := http.NewRequest(http.MethodDelete, f.URL, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete upload %s: %w", f.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete upload %s: status %d", f.URL, resp.StatusCode)
	}
}
