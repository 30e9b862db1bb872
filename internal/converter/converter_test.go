package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script standing in for imaketx.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-maketx")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestNewNotFound(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = New("")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConvertSuccess(t *testing.T) {
	script := writeScript(t, `echo "$1 -> $2 $3"`)
	c, err := New(script)
	require.NoError(t, err)
	assert.Equal(t, script, c.Path())

	out, err := c.Convert(context.Background(), "/tex/a_Albedo.png", "/tex/a_Albedo.tx")
	require.NoError(t, err)
	assert.Equal(t, "/tex/a_Albedo.png -> /tex/a_Albedo.tx --newer\n", out)
}

func TestConvertFailure(t *testing.T) {
	script := writeScript(t, `echo "cannot read $1" >&2; exit 3`)
	c, err := New(script)
	require.NoError(t, err)

	out, err := c.Convert(context.Background(), "/tex/a_Albedo.png", "/tex/a_Albedo.tx")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Stderr, "cannot read /tex/a_Albedo.png")
	assert.Equal(t, exitErr.Stderr, out)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HB", "/opt/hfs/bin")
	want := filepath.Join("/opt/hfs/bin", "imaketx")
	if runtime.GOOS == "windows" {
		want += ".exe"
	}
	assert.Equal(t, want, DefaultPath())

	t.Setenv("HB", "")
	assert.Contains(t, DefaultPath(), "imaketx")
}
