package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/engine"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Reset discards the captured output.
func (b *SafeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b.Reset()
}

// Workspace is a temporary workspace directory for integration tests.
type Workspace struct {
	t    *testing.T
	Root string
	Logs *SafeBuffer
}

// NewWorkspace creates a temporary workspace holding files, keyed by
// slash-separated relative path.
func NewWorkspace(t *testing.T, files map[string]string) *Workspace {
	t.Helper()
	w := &Workspace{t: t, Root: t.TempDir(), Logs: &SafeBuffer{}}
	for name, content := range files {
		w.Write(name, content)
	}
	t.Cleanup(func() {
		if os.Getenv("BOOTFORGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), w.Logs.String())
		}
	})
	return w
}

// Write creates or replaces a workspace file.
func (w *Workspace) Write(name, content string) {
	w.t.Helper()
	path := w.Path(name)
	require.NoError(w.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(w.t, os.WriteFile(path, []byte(content), 0o644))
}

// Read returns the content of a workspace file.
func (w *Workspace) Read(name string) string {
	w.t.Helper()
	data, err := os.ReadFile(w.Path(name))
	require.NoError(w.t, err)
	return string(data)
}

// Exists reports whether a workspace file exists.
func (w *Workspace) Exists(name string) bool {
	_, err := os.Stat(w.Path(name))
	return err == nil
}

// Path returns the absolute path of a workspace file.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Root, filepath.FromSlash(name))
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Report    *engine.Report
	Err       error
}
