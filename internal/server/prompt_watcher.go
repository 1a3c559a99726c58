package server

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"personasim/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// PromptWatcher watches prompt override files and the stored question set
// and calls onChange, debounced, when any of them is written or replaced.
// Parent directories are watched since atomic writes replace the file.
type PromptWatcher struct {
	mu sync.Mutex

	files         []string
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}
	doneChan   chan struct{}

	onChange func(changed []string)
	pending  []string
	logger   *errors.Logger

	running bool
}

// NewPromptWatcher returns a stopped watcher over files.
func NewPromptWatcher(files []string, debounceDelay time.Duration, onChange func(changed []string), logger *errors.Logger) *PromptWatcher {
	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = errors.Discard()
	}

	cleaned := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		if !slices.Contains(cleaned, f) {
			cleaned = append(cleaned, f)
		}
	}

	return &PromptWatcher{
		files:         cleaned,
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		doneChan:      make(chan struct{}),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching.
func (pw *PromptWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("prompt watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	pw.fsWatcher = watcher

	var dirs []string
	for _, f := range pw.files {
		dir := filepath.Dir(f)
		if slices.Contains(dirs, dir) {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			pw.logger.Warn("Failed to watch directory", "dir", dir, "error", err)
			continue
		}
		dirs = append(dirs, dir)
	}

	pw.running = true
	go pw.watchLoop()

	pw.logger.Info("Prompt watcher started",
		"files", pw.files,
		"debounce", pw.debounceDelay.String())
	return nil
}

// Stop ends the watch loop and releases the watcher.
func (pw *PromptWatcher) Stop() error {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return nil
	}
	pw.running = false
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	close(pw.stopChan)
	pw.mu.Unlock()

	<-pw.doneChan
	return pw.fsWatcher.Close()
}

// IsRunning returns whether the watcher is currently running
func (pw *PromptWatcher) IsRunning() bool {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.running
}

// Files returns the watched files.
func (pw *PromptWatcher) Files() []string {
	return slices.Clone(pw.files)
}

func (pw *PromptWatcher) watchLoop() {
	defer close(pw.doneChan)
	for {
		select {
		case event, ok := <-pw.fsWatcher.Events:
			if !ok {
				return
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload(event.Name)
			}

		case err, ok := <-pw.fsWatcher.Errors:
			if !ok {
				return
			}
			pw.logger.LogError(err, "File watcher error")

		case <-pw.reloadChan:
			pw.mu.Lock()
			changed := pw.pending
			pw.pending = nil
			pw.mu.Unlock()
			if len(changed) > 0 {
				pw.logger.Info("Watched files changed", "files", changed)
				pw.onChange(changed)
			}

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *PromptWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	name := event.Name
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	if !slices.Contains(pw.files, name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (pw *PromptWatcher) scheduleReload(name string) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	if !slices.Contains(pw.pending, name) {
		pw.pending = append(pw.pending, name)
	}

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case pw.reloadChan <- struct{}{}:
		default:
		}
	})
}
