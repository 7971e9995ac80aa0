package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

func newShellScanner(t *testing.T, script string, timeout string) *CLIScanner {
	t.Helper()
	s, err := NewCLIScanner(config.Options{
		"command": "sh",
		"args":    []string{"-c", script, "scan"},
		"timeout": timeout,
	}, nullLogger())
	if err != nil {
		t.Fatalf("NewCLIScanner() error = %v", err)
	}
	return s
}

func TestCLIScanner_Executable(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{name: "existing binary", command: "sh", want: true},
		{name: "non-existent binary", command: "/nonexistent/clamdscan", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewCLIScanner(config.Options{"command": tt.command}, nullLogger())
			if err != nil {
				t.Fatalf("NewCLIScanner() error = %v", err)
			}

			if got := s.Executable(); got != tt.want {
				t.Errorf("Executable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCLIScanner_EmptyCommand(t *testing.T) {
	if _, err := NewCLIScanner(config.Options{"command": ""}, nullLogger()); err == nil {
		t.Error("NewCLIScanner() error = nil, want error for empty command")
	}
}

func TestCLIScanner_buildScanArgs(t *testing.T) {
	s, err := NewCLIScanner(config.Options{"args": []interface{}{"--no-summary", "--fdpass"}}, nullLogger())
	if err != nil {
		t.Fatalf("NewCLIScanner() error = %v", err)
	}

	args := s.buildScanArgs("/tmp/upload.pdf")
	want := []string{"--no-summary", "--fdpass", "/tmp/upload.pdf"}

	if len(args) != len(want) {
		t.Fatalf("buildScanArgs() = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("buildScanArgs()[%d] = %v, want %v", i, args[i], want[i])
		}
	}
}

func TestCLIScanner_RunScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		script string
		path   string
		want   Errors
	}{
		{name: "exit 0 is clean", script: "exit 0", path: path, want: nil},
		{name: "exit 1 is a virus", script: "exit 1", path: path, want: Errors{CodeVirusDetected}},
		{name: "exit 2 is a client error", script: "exit 2", path: path, want: Errors{CodeClientError}},
		{name: "path is passed last", script: `test -f "$1" && exit 1`, path: path, want: Errors{CodeVirusDetected}},
		{name: "missing file", script: "exit 0", path: path + ".missing", want: Errors{CodeFileNotFound}},
		{name: "directory is not a file", script: "exit 0", path: filepath.Dir(path), want: Errors{CodeFileNotFound}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs Errors
			newShellScanner(t, tt.script, "5s").RunScan(context.Background(), tt.path, &errs)

			if len(errs) != len(tt.want) {
				t.Fatalf("RunScan() errors = %v, want %v", errs, tt.want)
			}
			for i := range errs {
				if errs[i] != tt.want[i] {
					t.Errorf("RunScan() errors[%d] = %v, want %v", i, errs[i], tt.want[i])
				}
			}
		})
	}
}

func TestCLIScanner_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slow.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newShellScanner(t, "exec sleep 5", "100ms")

	start := time.Now()
	var errs Errors
	s.RunScan(context.Background(), path, &errs)

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("RunScan() took %v, want timeout near 100ms", elapsed)
	}
	if len(errs) != 1 || errs[0] != CodeClientError {
		t.Errorf("RunScan() errors = %v, want [%v]", errs, CodeClientError)
	}
}
