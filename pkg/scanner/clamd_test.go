package scanner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// fakeClamd answers PING and INSTREAM on a unix socket
type fakeClamd struct {
	listener net.Listener
	address  string
	reply    string

	mu       sync.Mutex
	received [][]byte
}

func newFakeClamd(t *testing.T, reply string) *fakeClamd {
	t.Helper()

	// Unix socket paths are length limited; keep the directory short
	dir, err := os.MkdirTemp("", "clamd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	address := filepath.Join(dir, "clamd.sock")
	listener, err := net.Listen("unix", address)
	require.NoError(t, err)

	f := &fakeClamd{listener: listener, address: address, reply: reply}
	t.Cleanup(func() { listener.Close() })

	go f.serve()
	return f
}

func (f *fakeClamd) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.handle(conn)
	}
}

func (f *fakeClamd) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	cmd, err := r.ReadString(0)
	if err != nil {
		return
	}

	switch cmd {
	case "zPING\x00":
		conn.Write([]byte("PONG\x00")) //nolint:errcheck
	case "zINSTREAM\x00":
		var data bytes.Buffer
		size := make([]byte, 4)
		for {
			if _, err := io.ReadFull(r, size); err != nil {
				return
			}
			n := binary.BigEndian.Uint32(size)
			if n == 0 {
				break
			}
			if _, err := io.CopyN(&data, r, int64(n)); err != nil {
				return
			}
		}
		f.mu.Lock()
		f.received = append(f.received, data.Bytes())
		f.mu.Unlock()

		reply := f.reply
		if reply == "" {
			reply = "stream: OK"
			if bytes.Contains(data.Bytes(), []byte("EICAR-STANDARD-ANTIVIRUS-TEST-FILE")) {
				reply = "stream: Eicar-Test-Signature FOUND"
			}
		}
		conn.Write([]byte(reply + "\x00")) //nolint:errcheck
	}
}

func (f *fakeClamd) Received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.received...)
}

func newClamd(t *testing.T, address string) *ClamdDetector {
	t.Helper()
	d, err := NewClamdDetector(config.Options{
		"network": "unix",
		"address": address,
		"timeout": "2s",
	}, nullLogger())
	require.NoError(t, err)
	return d
}

func TestClamdExecutable(t *testing.T) {
	server := newFakeClamd(t, "")

	assert.True(t, newClamd(t, server.address).Executable())
	assert.False(t, newClamd(t, filepath.Join(t.TempDir(), "absent.sock")).Executable())
}

func TestClamdRunScan(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "clean.bin")
	infected := filepath.Join(dir, "eicar.com")
	large := filepath.Join(dir, "large.bin")
	require.NoError(t, os.WriteFile(clean, []byte("clean"), 0o644))
	require.NoError(t, os.WriteFile(infected, []byte(eicarSample), 0o644))
	require.NoError(t, os.WriteFile(large, bytes.Repeat([]byte("a"), 3*clamdChunkSize+17), 0o644))

	tests := []struct {
		name  string
		path  string
		reply string
		want  Errors
	}{
		{"clean", clean, "", nil},
		{"infected", infected, "", Errors{CodeVirusDetected}},
		{"multi-chunk", large, "", nil},
		{"missing", filepath.Join(dir, "missing"), "", Errors{CodeFileNotFound}},
		{"engine error", clean, "INSTREAM size limit exceeded. ERROR", Errors{CodeClientError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeClamd(t, tt.reply)

			var errs Errors
			newClamd(t, server.address).RunScan(context.Background(), tt.path, &errs)

			assert.Equal(t, tt.want, errs)
		})
	}
}

func TestClamdStreamsWholeFile(t *testing.T) {
	server := newFakeClamd(t, "")
	content := bytes.Repeat([]byte("xyz"), clamdChunkSize)
	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	var errs Errors
	newClamd(t, server.address).RunScan(context.Background(), path, &errs)

	require.Empty(t, errs)
	require.Eventually(t, func() bool { return len(server.Received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, content, server.Received()[0])
}

func TestClamdUnreachableIsClientError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	var errs Errors
	newClamd(t, filepath.Join(t.TempDir(), "absent.sock")).RunScan(context.Background(), path, &errs)

	assert.Equal(t, Errors{CodeClientError}, errs)
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "Eicar-Test-Signature", signature("stream: Eicar-Test-Signature FOUND"))
}
