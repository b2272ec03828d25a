package jobconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gosched/internal/activity"
	"gosched/internal/facade"
	"gosched/internal/job"
	"gosched/pkg/logx"
)

// TaskFunc is the shape a job-definitions file's "task" name resolves to.
// Args flow through job.NormalizeMFA, which substitutes the scheduled
// instant for either sentinel before invoking the function.
type TaskFunc func(args ...any) error

// TaskRegistry resolves the string task names a job-definitions file
// declares to the functions the host process actually registered. Config
// files carry data, never code.
type TaskRegistry map[string]TaskFunc

// Manager loads a job-definitions file and, when Watch is running, hot
// reloads it, reconciling the declared job set against the scheduler via
// RunJob/UpdateJob/Cancel. Adapted from the teacher's config.ConfigManager;
// this manager's subscribers are entirely internal (it drives the facade
// itself rather than publishing to external listeners).
type Manager struct {
	path      string
	scheduler *facade.Scheduler
	tasks     TaskRegistry
	log       logx.Logger

	mu       sync.Mutex
	handles  map[string]*activity.Handle
	lastHash uint64
}

// NewManager returns a Manager that reconciles path's declared jobs against
// scheduler, resolving task names through tasks.
func NewManager(path string, scheduler *facade.Scheduler, tasks TaskRegistry, log logx.Logger) *Manager {
	return &Manager{
		path:      path,
		scheduler: scheduler,
		tasks:     tasks,
		log:       log,
		handles:   make(map[string]*activity.Handle),
	}
}

// LoadOnce parses the file and applies it once, without watching for
// further changes.
func (m *Manager) LoadOnce() error {
	f, err := Parse(m.path)
	if err != nil {
		return err
	}
	return m.reconcile(f)
}

// Handles returns a snapshot of the activity handles this manager currently
// owns, keyed by job name.
func (m *Manager) Handles() map[string]*activity.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*activity.Handle, len(m.handles))
	for k, v := range m.handles {
		out[k] = v
	}
	return out
}

func hashFile(f *File) uint64 {
	b, err := json.Marshal(f)
	if err != nil {
		return 0
	}
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

func (m *Manager) reconcile(f *File) error {
	seen := make(map[string]bool, len(f.Jobs))
	for _, def := range f.Jobs {
		if def.Name == "" {
			return fmt.Errorf("jobconfig: job at index missing required name")
		}
		if seen[def.Name] {
			return fmt.Errorf("jobconfig: duplicate job name %q", def.Name)
		}
		seen[def.Name] = true

		j, testOpts, err := m.buildJob(def)
		if err != nil {
			return fmt.Errorf("jobconfig: job %q: %w", def.Name, err)
		}

		m.mu.Lock()
		_, exists := m.handles[def.Name]
		m.mu.Unlock()

		if exists {
			if _, err := m.scheduler.UpdateJob(j, testOpts); err != nil {
				return fmt.Errorf("jobconfig: reconfigure %q: %w", def.Name, err)
			}
			continue
		}

		h, err := m.scheduler.RunJob(j, testOpts)
		if err != nil {
			return fmt.Errorf("jobconfig: start %q: %w", def.Name, err)
		}
		m.mu.Lock()
		m.handles[def.Name] = h
		m.mu.Unlock()
	}

	m.mu.Lock()
	var stale []string
	for name := range m.handles {
		if !seen[name] {
			stale = append(stale, name)
		}
	}
	m.mu.Unlock()

	for _, name := range stale {
		m.mu.Lock()
		h := m.handles[name]
		delete(m.handles, name)
		m.mu.Unlock()
		if h != nil {
			if err := m.scheduler.Cancel(h); err != nil && !m.log.IsZero() {
				m.log.Warn("jobconfig: cancel of removed job failed", logx.String("name", name), logx.Any("err", err))
			}
		}
	}

	m.mu.Lock()
	m.lastHash = hashFile(f)
	m.mu.Unlock()
	return nil
}

func (m *Manager) buildJob(def JobDef) (job.Job, job.TestOptions, error) {
	sched, err := ParseSchedule(def.Schedule)
	if err != nil {
		return job.Job{}, job.TestOptions{}, err
	}
	opts, err := toOptions(def.Options)
	if err != nil {
		return job.Job{}, job.TestOptions{}, err
	}
	opts.Name = def.Name

	fn, ok := m.tasks[def.Task]
	if !ok {
		return job.Job{}, job.TestOptions{}, fmt.Errorf("no task registered under name %q", def.Task)
	}
	task := job.NormalizeMFA(job.MFA{Fn: fn, Args: def.Args})

	return job.Job{Name: def.Name, Task: task, Schedule: sched, Options: opts}, job.TestOptions{}, nil
}

// Watch blocks, applying the file once and then reconciling on every
// filesystem change until ctx is done. Adapted from the teacher's
// config.ConfigManager.Watch: same debounce-then-reload and
// backoff-then-recreate-watcher self-healing, retargeted to reconcile
// through the facade instead of publishing to subscriber channels.
func (m *Manager) Watch(ctx context.Context) error {
	if err := m.LoadOnce(); err != nil {
		if !m.log.IsZero() {
			m.log.Warn("jobconfig: initial load failed", logx.String("path", m.path), logx.Any("err", err))
		}
	}

	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			f, err := Parse(m.path)
			if err != nil {
				if !m.log.IsZero() {
					m.log.Warn("jobconfig: parse failed", logx.String("path", m.path), logx.Any("err", err))
				}
				return
			}
			h := hashFile(f)
			m.mu.Lock()
			unchanged := h != 0 && h == m.lastHash
			m.mu.Unlock()
			if unchanged {
				return
			}
			if err := m.reconcile(f); err != nil && !m.log.IsZero() {
				m.log.Warn("jobconfig: reconcile failed", logx.String("path", m.path), logx.Any("err", err))
			}
		})
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("jobconfig: watch init failed", logx.Any("err", err), logx.String("dir", dir))
			}
			if waitOrDone(ctx, nextBackoff(&backoff, restartBackoffMax, rng)) {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			if !m.log.IsZero() {
				m.log.Warn("jobconfig: watch add failed", logx.Any("err", err), logx.String("dir", dir))
			}
			if waitOrDone(ctx, nextBackoff(&backoff, restartBackoffMax, rng)) {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err != nil && !m.log.IsZero() {
					m.log.Warn("jobconfig: watch error", logx.Any("err", err), logx.String("dir", dir))
				}
				if err != nil && strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		if waitOrDone(ctx, nextBackoff(&backoff, restartBackoffMax, rng)) {
			return nil
		}
	}
}

func nextBackoff(backoff *time.Duration, max time.Duration, rng *rand.Rand) time.Duration {
	wait := *backoff + time.Duration(rng.Int63n(int64(*backoff/2)+1))
	if *backoff < max {
		*backoff *= 2
		if *backoff > max {
			*backoff = max
		}
	}
	return wait
}

func waitOrDone(ctx context.Context, wait time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(wait):
		return false
	}
}
