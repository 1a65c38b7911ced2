// Package testutil holds helpers shared by the application-level tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/babago/internal/app"
	"github.com/stretchr/testify/require"
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

// HarnessResult holds the outcomes of an application test run.
type HarnessResult struct {
	Output    string
	LogOutput string
	Err       error
	App       *app.App
	Dir       string
}

// WriteFiles writes files, keyed by slash-separated relative path, under a
// fresh temporary directory and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

// RunApp writes files to a temporary directory, builds an App from the config
// returned by configure (given that directory) and runs it with a
// background context.
func RunApp(t *testing.T, files map[string]string, configure func(dir string) app.Config) *HarnessResult {
	t.Helper()
	return RunAppWithContext(context.Background(), t, files, configure)
}

// RunAppWithContext is RunApp with a caller supplied context.
func RunAppWithContext(ctx context.Context, t *testing.T, files map[string]string, configure func(dir string) app.Config) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	cfg := configure(dir)
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"

	validated, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out := &SafeBuffer{}
	logs := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(out, logs, validated)
	}()

	if os.Getenv("BABAGO_TEST_LOGS") == "true" {
		t.Cleanup(func() {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		})
	}

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logs.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			Dir:       dir,
		}
	}

	runErr := testApp.Run(ctx)
	return &HarnessResult{
		Output:    out.String(),
		LogOutput: logs.String(),
		Err:       runErr,
		App:       testApp,
		Dir:       dir,
	}
}
