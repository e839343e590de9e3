package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store owns the live workflow snapshot. Readers call Snapshot and use the
// returned value for the duration of one request; writers (file reloads)
// publish a replacement atomically.
type Store struct {
	path      string
	agentPath string
	logger    *zap.Logger
	snap      atomic.Pointer[Snapshot]
}

// NewStore loads the workflow document at path, merging the optional
// agent mapping file at agentPath. Missing files yield the built-in
// defaults; a malformed file is a load error.
func NewStore(path, agentPath string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:      path,
		agentPath: agentPath,
		logger:    logger.Named("workflow-config"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDefaultStore builds a store from the built-in defaults with no
// backing file. Used by tests and ephemeral runs.
func NewDefaultStore(logger *zap.Logger) *Store {
	s := &Store{logger: logger.Named("workflow-config")}
	s.snap.Store(newSnapshot(defaultDocument()))
	return s
}

// Snapshot returns the current immutable configuration view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Reload re-reads the backing file. On failure the previous snapshot stays
// published and the error is returned for admin tooling.
func (s *Store) Reload() error {
	return s.load()
}

func (s *Store) load() error {
	if s.path == "" {
		s.snap.Store(newSnapshot(defaultDocument()))
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("Workflow config file missing, using defaults",
				zap.String("path", s.path))
			s.snap.Store(newSnapshot(defaultDocument()))
			return nil
		}
		return fmt.Errorf("failed to read workflow config: %w", err)
	}

	doc, err := parseDocument(data)
	if err != nil {
		return err
	}

	// Sections omitted from the file fall back to defaults so a partial
	// document never silently disables progression for an entity type.
	defaults := defaultDocument()
	if doc.StatusProgression == nil {
		doc.StatusProgression = defaults.StatusProgression
	} else {
		for entityType, prog := range defaults.StatusProgression {
			if _, ok := doc.StatusProgression[entityType]; !ok {
				doc.StatusProgression[entityType] = prog
			}
		}
	}

	if err := s.mergeAgentMapping(doc); err != nil {
		return err
	}

	s.snap.Store(newSnapshot(doc))
	s.logger.Info("Workflow config loaded", zap.String("path", s.path))
	return nil
}

// mergeAgentMapping folds the standalone agent mapping file into the
// document. Entries in the standalone file win over inline ones.
func (s *Store) mergeAgentMapping(doc *Document) error {
	if s.agentPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.agentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read agent mapping: %w", err)
	}

	mapping, err := parseAgentMapping(data)
	if err != nil {
		return err
	}
	if doc.AgentMapping == nil {
		doc.AgentMapping = make(map[string]string, len(mapping))
	}
	for tag, role := range mapping {
		doc.AgentMapping[tag] = role
	}
	return nil
}

// Watch hot-reloads the config whenever the backing file changes, until
// ctx is cancelled. Editors replace files rather than rewriting them, so
// the watcher observes the directory and filters events by name. Reload
// failures keep the previous snapshot.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if s.agentPath != "" {
		if agentDir := filepath.Dir(s.agentPath); agentDir != dir {
			if err := watcher.Add(agentDir); err != nil {
				watcher.Close()
				return fmt.Errorf("failed to watch %s: %w", agentDir, err)
			}
		}
	}

	go func() {
		defer watcher.Close()

		// Debounce bursts of events from editors that write in chunks.
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Clean(event.Name)
				if name != filepath.Clean(s.path) &&
					(s.agentPath == "" || name != filepath.Clean(s.agentPath)) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Config watcher error", zap.Error(err))
			case <-pending:
				pending = nil
				if err := s.load(); err != nil {
					s.logger.Error("Workflow config reload failed, keeping previous snapshot",
						zap.Error(err))
				}
			}
		}
	}()

	return nil
}
