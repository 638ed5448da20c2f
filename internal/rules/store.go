package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce groups the burst of events editors emit on save
const reloadDebounce = 100 * time.Millisecond

// Store holds the current catalog of a rule file and reloads it on change.
// A reload that fails to parse keeps the previous catalog.
type Store struct {
	path    string
	current atomic.Pointer[Catalog]
	logger  *slog.Logger
}

// NewStore loads the rule file once
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Catalog returns the most recently loaded catalog
func (s *Store) Catalog() *Catalog {
	return s.current.Load()
}

// Path returns the watched file
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the rule file
func (s *Store) Reload() error {
	c, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Watch reloads the catalog whenever the file changes and calls onChange
// with the new catalog. It blocks until ctx is done. The parent directory is
// watched because editors often replace files instead of writing in place.
func (s *Store) Watch(ctx context.Context, onChange func(*Catalog)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := s.Reload(); err != nil {
				s.logger.Warn("rule reload failed, keeping previous catalog", "path", s.path, "error", err)
				continue
			}
			c := s.Catalog()
			s.logger.Info("rules reloaded", "path", s.path, "rules", c.Len())
			if onChange != nil {
				onChange(c)
			}

		case wErr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("fsnotify error", "error", wErr)
		}
	}
}
