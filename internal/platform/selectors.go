package platform

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/deskhand/deskhand/internal/logging"
)

//go:embed selectors.yaml
var embeddedSelectors []byte

// Selectors holds the DOM selector lists for one platform. The daemon serves
// these to content contexts; the Go side never evaluates them.
type Selectors struct {
	Message []string `yaml:"message" json:"message"`
	Input   []string `yaml:"input" json:"input"`
}

// SelectorConfig is the full selector table, keyed by platform.
type SelectorConfig struct {
	Platforms map[ID]Selectors `yaml:"platforms" json:"platforms"`
}

// SelectorStore serves the selector table and hot-reloads it when the
// operator's override file changes on disk.
type SelectorStore struct {
	mu     sync.RWMutex
	config SelectorConfig
	path   string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSelectorStore loads the embedded selector table, then applies the
// operator override file (dataDir/selectors.yaml) if it exists.
func NewSelectorStore(dataDir string) (*SelectorStore, error) {
	var cfg SelectorConfig
	if err := yaml.Unmarshal(embeddedSelectors, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded selectors: %w", err)
	}

	s := &SelectorStore{
		config: cfg,
		path:   filepath.Join(dataDir, "selectors.yaml"),
		done:   make(chan struct{}),
	}
	s.loadOverride()
	return s, nil
}

// Get returns the selectors for a platform. ok is false for Unknown or for
// platforms with no entry in the table.
func (s *SelectorStore) Get(id ID) (Selectors, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sel, ok := s.config.Platforms[id]
	return sel, ok
}

// All returns a copy of the whole selector table.
func (s *SelectorStore) All() SelectorConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := SelectorConfig{Platforms: make(map[ID]Selectors, len(s.config.Platforms))}
	for id, sel := range s.config.Platforms {
		out.Platforms[id] = sel
	}
	return out
}

// Watch starts watching the override file's directory and reloads on change.
// Safe to call when the override does not exist yet; it picks the file up
// when it appears.
func (s *SelectorStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create selector watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = watcher

	go func() {
		// Debounce: editors fire several events per save.
		var timer *time.Timer
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, func() {
					s.loadOverride()
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Errorf("selector watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (s *SelectorStore) Close() {
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// loadOverride merges the operator override file over the embedded table.
// Platforms present in the override replace the embedded entry wholesale.
func (s *SelectorStore) loadOverride() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // no override file is the normal case
	}

	var override SelectorConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		logging.Errorf("ignoring malformed selector override %s: %v", s.path, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sel := range override.Platforms {
		if !Valid(id) || id == Unknown {
			logging.Warnf("selector override for unsupported platform %q ignored", id)
			continue
		}
		s.config.Platforms[id] = sel
	}
	logging.Infof("selector overrides loaded from %s", s.path)
}
