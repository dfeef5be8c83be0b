package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/charliek/m3tail/internal/daemon"
)

const sampleLog = `@2023-04-01T10:00:00Z [user, auth] #INFO: login ok
@2023-04-01T10:00:01Z [auth] #ERROR: login failed
`

// buildBinary builds the m3tail binary and returns its path
func buildBinary(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	projectRoot := filepath.Join(wd, "..", "..")

	binary := filepath.Join(t.TempDir(), "m3tail")

	cmd := exec.Command("go", "build", "-o", binary, "./cmd/m3tail")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	return binary
}

// freePort returns a port nothing listens on right now
func freePort(t *testing.T) int {
	t.Helper()
	port, err := daemon.FindAvailablePort("127.0.0.1")
	if err != nil {
		t.Fatalf("finding port: %v", err)
	}
	return port
}

func apiAddr(port int) string {
	return "http://127.0.0.1:" + strconv.Itoa(port)
}

// lockedBuffer collects process output written from another goroutine
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startM3tail starts the binary in dir and kills it at cleanup if it is still running
func startM3tail(t *testing.T, binary, dir string, args ...string) (*exec.Cmd, *lockedBuffer) {
	t.Helper()

	out := &lockedBuffer{}
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start m3tail: %v", err)
	}
	t.Cleanup(func() {
		if cmd.ProcessState == nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	})
	return cmd, out
}

// runM3tail runs a short-lived command and returns its combined output
func runM3tail(t *testing.T, binary, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// waitForAPI waits for the API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// waitFor polls cond until it holds
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

// totalRecords reads total_count from GET /api/v1/logs
func totalRecords(t *testing.T, addr string) int {
	t.Helper()
	resp, err := http.Get(addr + "/api/v1/logs")
	if err != nil {
		return -1
	}
	defer resp.Body.Close()

	var body struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return -1
	}
	return body.TotalCount
}

// waitForExit waits for cmd to exit and returns its error
func waitForExit(t *testing.T, cmd *exec.Cmd, timeout time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatalf("m3tail did not exit within %v", timeout)
		return nil
	}
}

// skipShort skips the test if -short flag is provided
func skipShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// writeLogs creates dir/logs/app.log with content and returns the logs dir
func writeLogs(t *testing.T, dir, content string) string {
	t.Helper()
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(logDir, "app.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return logDir
}
