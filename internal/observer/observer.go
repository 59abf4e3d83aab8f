// Package observer watches the sandbox directory for authored agent files
// and reports them, debounced, to a callback. The pipeline writes files in
// bursts; one notification per agent directory per burst is enough for the
// dashboard stream.
package observer

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ArtifactCallback is called with the agent directory name and the files
// written there since the last flush
type ArtifactCallback func(agentDir string, files []string)

// SandboxWatcher monitors the sandbox for generated agent files
type SandboxWatcher struct {
	watcher  *fsnotify.Watcher
	sandbox  string
	callback ArtifactCallback
	debounce time.Duration

	pendingByAgent map[string]map[string]struct{}
	timer          *time.Timer
	mu             sync.Mutex

	cancel context.CancelFunc
}

// New creates a watcher over the sandbox root. New agent directories are
// picked up as the pipeline creates them.
func New(sandboxDir string, callback ArtifactCallback) (*SandboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(sandboxDir); err != nil {
		watcher.Close()
		return nil, err
	}

	sw := &SandboxWatcher{
		watcher:        watcher,
		sandbox:        sandboxDir,
		callback:       callback,
		debounce:       500 * time.Millisecond,
		pendingByAgent: make(map[string]map[string]struct{}),
	}

	// Pick up agent directories that already exist
	entries, err := os.ReadDir(sandboxDir)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := watcher.Add(filepath.Join(sandboxDir, e.Name())); err != nil {
				log.Printf("[observer] cannot watch %s: %v", e.Name(), err)
			}
		}
	}

	return sw, nil
}

// Start begins delivering notifications until the context is cancelled
func (sw *SandboxWatcher) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sw.watcher.Events:
				if !ok {
					return
				}
				sw.handleEvent(event)
			case err, ok := <-sw.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[observer] watch error: %v", err)
			}
		}
	}()
}

// Stop ends watching and releases the inotify handles
func (sw *SandboxWatcher) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.watcher.Close()
}

// SetDebounce sets the batching window for change notifications
func (sw *SandboxWatcher) SetDebounce(d time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.debounce = d
}

func (sw *SandboxWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		// A new agent directory under the sandbox root gets its own watch
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if filepath.Dir(event.Name) == sw.sandbox {
				if err := sw.watcher.Add(event.Name); err != nil {
					log.Printf("[observer] cannot watch %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	rel, err := filepath.Rel(sw.sandbox, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	parts := strings.SplitN(rel, string(filepath.Separator), 2)
	if len(parts) != 2 {
		return // file at the sandbox root, not an agent artifact
	}
	agentDir := parts[0]

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.pendingByAgent[agentDir] == nil {
		sw.pendingByAgent[agentDir] = make(map[string]struct{})
	}
	sw.pendingByAgent[agentDir][event.Name] = struct{}{}

	if sw.timer != nil {
		sw.timer.Stop()
	}
	sw.timer = time.AfterFunc(sw.debounce, sw.flush)
}

func (sw *SandboxWatcher) flush() {
	sw.mu.Lock()
	pending := sw.pendingByAgent
	sw.pendingByAgent = make(map[string]map[string]struct{})
	sw.mu.Unlock()

	if sw.callback == nil {
		return
	}

	for agentDir, fileMap := range pending {
		files := make([]string, 0, len(fileMap))
		for f := range fileMap {
			files = append(files, f)
		}
		if len(files) > 0 {
			sw.callback(agentDir, files)
		}
	}
}
