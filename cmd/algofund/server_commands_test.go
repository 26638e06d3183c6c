package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runApp runs the CLI with args and returns its stdout. Stderr is discarded.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)

	oldStdout, oldStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = stdoutW, devNull
	defer func() {
		os.Stdout, os.Stderr = oldStdout, oldStderr
		devNull.Close()
	}()

	// Drain concurrently so large outputs cannot fill the pipe buffer.
	captured := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(stdoutR)
		captured <- string(data)
	}()

	runErr := newApp().Run(append([]string{"algofund"}, args...))
	stdoutW.Close()
	return <-captured, runErr
}

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHealthCommand_Success(t *testing.T) {
	server := healthyServer(t)

	output, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, output, "Server is healthy")
	assert.Contains(t, output, server.URL)
}

func TestHealthCommand_JSON(t *testing.T) {
	server := healthyServer(t)

	output, err := runApp(t, "--server-url", server.URL, "--json", "server", "health")
	require.NoError(t, err)

	var report healthReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.True(t, report.Healthy)
	assert.Equal(t, server.URL, report.URL)
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestHealthCommand_MissingServerURL(t *testing.T) {
	_, err := runApp(t, "--server-url", "", "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-url is required")
}

func TestVersionCommand(t *testing.T) {
	output, err := runApp(t, "server", "version")
	require.NoError(t, err)
	assert.Contains(t, output, "algofund CLI dev")
	assert.Contains(t, output, "Go:")
}
