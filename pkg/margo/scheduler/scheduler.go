// Package scheduler implements the time-based job service behind recurring
// events. Trigger execution uses robfig/cron; directory change notification
// uses fsnotify. Job registration, cancellation, and the firing sweep all
// serialize on a single mutex so a rebuild never races a fire.
package scheduler

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// stopTimeout bounds how long Stop waits for in-flight jobs and the watcher
// goroutine before giving up.
const stopTimeout = 10 * time.Second

// JobFunc is invoked with the job's event id when its schedule fires.
type JobFunc func(eventID string)

// FileEvent describes one filesystem change under the watched directory.
type FileEvent struct {
	Type  string // "created", "modified", "deleted"
	Path  string // absolute path
	IsDir bool
}

// WatchFunc receives filesystem events from the directory watcher.
type WatchFunc func(ev FileEvent)

// Service schedules jobs by textual rule and optionally watches one
// directory tree for changes.
type Service struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID

	watchPath string
	watchFn   WatchFunc
	watcher   *fsnotify.Watcher

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger *slog.Logger
}

// New creates a stopped Service.
func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cron:    newCron(),
		entries: make(map[string]cron.EntryID),
		logger:  logger.With("component", "scheduler"),
	}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
}

// AddJob registers fn to run per the given rule under the supplied event id.
// An unparseable rule returns false and registers nothing. Re-adding an
// existing id replaces the previous registration, so at most one live
// registration exists per id.
func (s *Service) AddJob(rule, eventID string, fn JobFunc) bool {
	sched, ok := ParseRule(rule)
	if !ok {
		s.logger.Warn("unparseable schedule rule", "rule", rule, "event_id", eventID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, exists := s.entries[eventID]; exists {
		s.cron.Remove(prev)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() {
		fn(eventID)
	}))
	s.entries[eventID] = id

	s.logger.Debug("job scheduled", "event_id", eventID, "rule", rule)
	return true
}

// Unschedule cancels the registration for an event id. Unknown ids are a
// no-op.
func (s *Service) Unschedule(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[eventID]
	if !ok {
		return
	}
	if s.cron != nil {
		s.cron.Remove(id)
	}
	delete(s.entries, eventID)
	s.logger.Debug("job unscheduled", "event_id", eventID)
}

// Jobs returns the ids of all live registrations.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// WatchDirectory registers a recursive watch on path, delivering create,
// modify, and delete events to fn. A Service supports a single watch target;
// further calls are logged and ignored.
func (s *Service) WatchDirectory(path string, fn WatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchPath != "" {
		s.logger.Warn("watch target already set, ignoring",
			"existing", s.watchPath, "requested", path)
		return
	}
	s.watchPath = path
	s.watchFn = fn
}

// Start launches the cron engine and, if a watch target was registered, the
// filesystem watcher goroutine.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler: already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true

	if s.watchPath != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("scheduler: create watcher: %w", err)
		}
		if err := addDirsRecursive(w, s.watchPath); err != nil {
			w.Close()
			return fmt.Errorf("scheduler: watch %s: %w", s.watchPath, err)
		}
		s.watcher = w
		s.wg.Add(1)
		go s.watchLoop(w, s.watchFn)
		s.logger.Info("watching directory", "path", s.watchPath)
	}

	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the cron engine and the watcher, waiting a bounded time for
// both, and clears all registrations. Safe to call without a prior Start.
func (s *Service) Stop() {
	s.mu.Lock()
	cronEngine := s.cron
	watcher := s.watcher
	cancel := s.cancel
	s.cron = newCron() // fresh engine so the service can be started again
	s.watcher = nil
	s.started = false
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	if cronEngine != nil {
		stopCtx := cronEngine.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(stopTimeout):
			s.logger.Warn("scheduler stop timed out waiting for jobs")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("scheduler stop timed out waiting for watcher")
	}

	s.logger.Info("scheduler stopped")
}

// watchLoop forwards fsnotify events until the watcher closes. Write events
// on directories are dropped: they fire spuriously whenever a child changes.
// Newly created directories are added to the watch set.
func (s *Service) watchLoop(w *fsnotify.Watcher, fn WatchFunc) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}

			info, statErr := os.Stat(ev.Name)
			isDir := statErr == nil && info.IsDir()

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = "created"
				if isDir {
					if err := addDirsRecursive(w, ev.Name); err != nil {
						s.logger.Warn("failed to watch new directory",
							"path", ev.Name, "error", err)
					}
				}
			case ev.Op&fsnotify.Write != 0:
				if isDir {
					continue
				}
				kind = "modified"
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = "deleted"
			default:
				continue
			}

			if fn != nil {
				fn(FileEvent{Type: kind, Path: ev.Name, IsDir: isDir})
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
