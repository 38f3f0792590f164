package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/cortexkb/cortex/internal/composer"
)

// WeightsSource serves the current dimension weights and hot-reloads them
// when the backing YAML file changes, so weight tuning doesn't require a
// restart. A missing path serves the defaults. An invalid edit keeps the
// previous weights in effect.
type WeightsSource struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	weights composer.Weights
}

// NewWeightsSource loads weights from path and starts watching it for
// changes. An empty path serves DefaultWeights with no watching.
func NewWeightsSource(path string) (*WeightsSource, error) {
	source := &WeightsSource{
		path:    path,
		weights: composer.DefaultWeights(),
	}
	if path == "" {
		return source, nil
	}

	weights, err := loadWeightsFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		log.Printf("config: weights file %s not found, using defaults", path)
	} else {
		source.weights = weights
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create weights watcher: %w", err)
	}
	// Watch the directory: editors often replace the file, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: failed to watch %s: %w", filepath.Dir(path), err)
	}
	source.watcher = watcher
	go source.watch()

	return source, nil
}

// Current returns the weights in effect.
func (s *WeightsSource) Current() composer.Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}

// Close stops watching. Safe to call on a source that never watched.
func (s *WeightsSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *WeightsSource) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: weights watcher error: %v", err)
		}
	}
}

func (s *WeightsSource) reload() {
	weights, err := loadWeightsFile(s.path)
	if err != nil {
		log.Printf("config: keeping previous weights, reload failed: %v", err)
		return
	}
	s.mu.Lock()
	s.weights = weights
	s.mu.Unlock()
	log.Printf("config: reloaded dimension weights from %s", s.path)
}

// loadWeightsFile parses and validates a weights YAML file. Weights that do
// not sum to 1 are rejected rather than silently normalized, so a typo in
// the file is visible instead of quietly reshaping every score.
func loadWeightsFile(path string) (composer.Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return composer.Weights{}, err
	}
	var weights composer.Weights
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return composer.Weights{}, fmt.Errorf("config: failed to parse weights file %s: %w", path, err)
	}
	if err := weights.Validate(); err != nil {
		return composer.Weights{}, fmt.Errorf("config: invalid weights in %s: %w", path, err)
	}
	return weights, nil
}
