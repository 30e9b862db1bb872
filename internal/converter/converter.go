// Package converter runs the external texture-cache converter (imaketx or a
// compatible tool) as a subprocess.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when the converter executable cannot be located.
var ErrNotFound = errors.New("converter not found")

// ExitError reports a conversion that ran but did not exit cleanly.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("converter exited with code %d", e.Code)
	}
	return fmt.Sprintf("converter exited with code %d: %s", e.Code, msg)
}

// Exec invokes `<path> <src> <dst> --newer` for each conversion.
type Exec struct {
	path string
	args []string
}

// New resolves the converter executable. A bare name is looked up on PATH.
func New(path string, extraArgs ...string) (*Exec, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no converter configured", ErrNotFound)
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	return &Exec{path: resolved, args: extraArgs}, nil
}

// DefaultPath returns the converter shipped with the Houdini install named by
// $HB, or "imaketx" on PATH.
func DefaultPath() string {
	name := "imaketx"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if hb := os.Getenv("HB"); hb != "" {
		return filepath.Join(hb, name)
	}
	return name
}

// Path returns the resolved executable path.
func (e *Exec) Path() string {
	return e.path
}

// Convert runs one conversion and blocks until the subprocess exits. On a
// non-zero exit it returns an *ExitError carrying the captured output.
func (e *Exec) Convert(ctx context.Context, src, dst string) (string, error) {
	args := append([]string{src, dst, "--newer"}, e.args...)
	cmd := exec.CommandContext(ctx, e.path, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	out := output.String()
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{Code: exitErr.ExitCode(), Stderr: out}
	}
	return out, fmt.Errorf("run %s: %w", filepath.Base(e.path), err)
}
