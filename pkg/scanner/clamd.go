package scanner

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// clamd protocol commands, null-terminated
var (
	clamdCmdPing     = []byte("zPING\x00")
	clamdCmdInstream = []byte("zINSTREAM\x00")
)

const clamdChunkSize = 64 * 1024

// ClamdDetector streams files to a clamd daemon with INSTREAM. The file is
// sent over the socket so clamd does not need access to the path.
type ClamdDetector struct {
	network string
	address string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewClamdDetector reads the "network", "address" and "timeout" options
func NewClamdDetector(opts config.Options, logger *logrus.Logger) (*ClamdDetector, error) {
	d := &ClamdDetector{
		network: opts.String("network", "unix"),
		address: opts.String("address", "/var/run/clamav/clamd.ctl"),
		timeout: opts.Duration("timeout", 30*time.Second),
		logger:  logger,
	}
	if d.address == "" {
		return nil, fmt.Errorf("clamd address is required")
	}
	return d, nil
}

// Executable reports whether clamd answers PING
func (d *ClamdDetector) Executable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	reply, err := d.command(ctx, func(conn net.Conn) error {
		_, err := conn.Write(clamdCmdPing)
		return err
	})
	if err != nil {
		d.logger.WithError(err).WithField("address", d.address).Debug("clamd ping failed")
		return false
	}
	return reply == "PONG"
}

func (d *ClamdDetector) RunScan(ctx context.Context, path string, errs *Errors) {
	f, err := os.Open(path)
	if err != nil {
		errs.Add(CodeFileNotFound)
		return
	}
	defer f.Close()

	if info, err := f.Stat(); err != nil || !info.Mode().IsRegular() {
		errs.Add(CodeFileNotFound)
		return
	}

	reply, err := d.command(ctx, func(conn net.Conn) error {
		return instream(conn, f)
	})
	if err != nil {
		d.logger.WithError(err).WithField("address", d.address).Error("clamd scan failed")
		errs.Add(CodeClientError)
		return
	}

	switch {
	case strings.HasSuffix(reply, "FOUND"):
		d.logger.WithFields(logrus.Fields{
			"path":      path,
			"signature": signature(reply),
		}).Info("clamd detected a virus")
		errs.Add(CodeVirusDetected)
	case strings.HasSuffix(reply, "OK"):
	default:
		d.logger.WithFields(logrus.Fields{
			"path":  path,
			"reply": reply,
		}).Error("clamd returned an error")
		errs.Add(CodeClientError)
	}
}

// command dials clamd, lets send write the request and reads the
// null-terminated reply.
func (d *ClamdDetector) command(ctx context.Context, send func(net.Conn) error) (string, error) {
	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, d.network, d.address)
	if err != nil {
		return "", &NetworkError{Operation: "clamd dial", Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	if err := send(conn); err != nil {
		return "", &NetworkError{Operation: "clamd write", Err: err}
	}

	reply, err := bufio.NewReader(conn).ReadString(0)
	if err != nil && err != io.EOF {
		return "", &NetworkError{Operation: "clamd read", Err: err}
	}
	return strings.TrimSpace(strings.TrimRight(reply, "\x00")), nil
}

// instream writes r as length-prefixed chunks followed by a zero-length chunk
func instream(w io.Writer, r io.Reader) error {
	if _, err := w.Write(clamdCmdInstream); err != nil {
		return err
	}

	buf := make([]byte, clamdChunkSize)
	size := make([]byte, 4)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(size, uint32(n))
			if _, werr := w.Write(size); werr != nil {
				return werr
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{0, 0, 0, 0})
	return err
}

// signature extracts the name from "stream: Eicar-Signature FOUND"
func signature(reply string) string {
	reply = strings.TrimSuffix(reply, "FOUND")
	if i := strings.Index(reply, ": "); i >= 0 {
		reply = reply[i+2:]
	}
	return strings.TrimSpace(reply)
}
