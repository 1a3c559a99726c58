package server

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptWatcher(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "simulate.txt")
	other := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(prompt, []byte("v1"), 0600))

	var (
		mu      sync.Mutex
		changes [][]string
	)
	w := NewPromptWatcher([]string{prompt, prompt, ""}, 20*time.Millisecond, func(changed []string) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, changed)
	}, nil)
	assert.Equal(t, []string{prompt}, w.Files())

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start())

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0600))
	require.NoError(t, os.WriteFile(prompt, []byte("v2"), 0600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{prompt}, changes[0])
	mu.Unlock()

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Stop())
}

func TestPromptWatcherReplacedFile(t *testing.T) {
	dir := t.TempDir()
	questions := filepath.Join(dir, "questions.txt")
	require.NoError(t, os.WriteFile(questions, []byte("One?\n"), 0600))

	changed := make(chan []string, 4)
	w := NewPromptWatcher([]string{questions}, 20*time.Millisecond, func(files []string) {
		changed <- files
	}, nil)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	tmp := filepath.Join(dir, ".questions.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("One?\nTwo?\n"), 0600))
	require.NoError(t, os.Rename(tmp, questions))

	select {
	case files := <-changed:
		assert.Equal(t, []string{questions}, files)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported after the file was replaced")
	}
}
