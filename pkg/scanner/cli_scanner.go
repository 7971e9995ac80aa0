package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// CLIScanner runs an external scan command (clamdscan by default) with the
// file path as last argument. Exit status 0 means clean and 1 means a virus
// was found; anything else is a client error.
type CLIScanner struct {
	command string
	args    []string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewCLIScanner reads the "command", "args" and "timeout" options
func NewCLIScanner(opts config.Options, logger *logrus.Logger) (*CLIScanner, error) {
	s := &CLIScanner{
		command: opts.String("command", "clamdscan"),
		args:    opts.Strings("args"),
		timeout: opts.Duration("timeout", time.Minute),
		logger:  logger,
	}
	if s.command == "" {
		return nil, fmt.Errorf("scan command is required")
	}
	return s, nil
}

// Executable checks if the scan command is on the PATH
func (s *CLIScanner) Executable() bool {
	_, err := exec.LookPath(s.command)
	return err == nil
}

func (s *CLIScanner) RunScan(ctx context.Context, path string, errs *Errors) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		errs.Add(CodeFileNotFound)
		return
	}

	startTime := time.Now()

	cmd := exec.CommandContext(ctx, s.command, s.buildScanArgs(path)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := s.executeWithTimeout(ctx, cmd)
	duration := time.Since(startTime)

	fields := logrus.Fields{
		"path":     path,
		"command":  s.command,
		"duration": duration,
	}

	if err == nil {
		s.logger.WithFields(fields).Debug("Scan command reported clean file")
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.WithFields(fields).Warn("Scan command timeout")
		errs.Add(CodeClientError)
		return
	}

	switch exitCode := getExitCode(err); exitCode {
	case 1:
		fields["output"] = stdout.String()
		s.logger.WithFields(fields).Info("Scan command detected a virus")
		errs.Add(CodeVirusDetected)
	default:
		fields["exit_code"] = exitCode
		fields["error"] = err.Error()
		fields["stderr"] = stderr.String()
		s.logger.WithFields(fields).Error("Scan command failed")
		errs.Add(CodeClientError)
	}
}

// buildScanArgs appends the file path to the configured arguments
func (s *CLIScanner) buildScanArgs(path string) []string {
	args := make([]string, 0, len(s.args)+1)
	args = append(args, s.args...)
	return append(args, path)
}

// executeWithTimeout executes the command with a timeout
func (s *CLIScanner) executeWithTimeout(ctx context.Context, cmd *exec.Cmd) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start scanner: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if cmd.Process != nil {
			cmd.Process.Kill() //nolint:errcheck
		}
		<-done
		return timeoutCtx.Err()
	}
}

// getExitCode extracts the exit code from an exec.ExitError
func getExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
