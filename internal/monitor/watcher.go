package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/filesystem"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/fsnotify/fsnotify"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultDebounce     = 250 * time.Millisecond
	maxSubtreeDepth     = 16
)

// Trigger is delivered when a subscription fires
type Trigger struct {
	Event Event
	// Path is the changed file or the key that was polled
	Path string
	At   time.Time
}

// WatcherConfig configures a Watcher
type WatcherConfig struct {
	Backend      registry.Backend
	PollInterval time.Duration // registry polling period
	Debounce     time.Duration // quiet period before a trigger is delivered
	OnTrigger    func(Trigger)
}

type subscription struct {
	event Event

	// registry state
	fingerprint string

	// debounce state
	pendingPath string
	lastChange  time.Time
}

// Watcher delivers triggers for registry and folder subscriptions. Folders
// are watched through fsnotify; registry keys are polled and compared with
// the previous observation.
type Watcher struct {
	cfg     WatcherConfig
	mu      sync.Mutex
	subs    []*subscription
	running atomic.Bool
}

// NewWatcher validates the configuration and applies defaults
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.OnTrigger == nil {
		return nil, errors.New("trigger callback is required")
	}
	if cfg.Backend == nil {
		cfg.Backend = registry.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	return &Watcher{cfg: cfg}, nil
}

// Subscribe adds events to watch. It must be called before Run.
func (w *Watcher) Subscribe(events ...Event) error {
	if w.running.Load() {
		return errors.New("watcher already running")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range events {
		if e == nil {
			continue
		}
		w.subs = append(w.subs, &subscription{event: e})
	}
	return nil
}

// Len returns the number of subscriptions
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// Run watches until ctx is cancelled. Triggers are delivered on the calling
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("watcher already running")
	}
	defer w.running.Store(false)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	w.mu.Lock()
	subs := append([]*subscription(nil), w.subs...)
	w.mu.Unlock()

	for _, s := range subs {
		switch e := s.event.(type) {
		case RegistryEvent:
			s.fingerprint = fingerprint(w.cfg.Backend, e)
		case FileEvent:
			w.addFolderWatch(fsw, e)
		}
	}
	logger.Info("Watching %d subscriptions", len(subs))

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()
	flush := time.NewTicker(flushInterval(w.cfg.Debounce))
	defer flush.Stop()

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(fsw, subs, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Folder watch error: %v", err)

		case <-poll.C:
			now := time.Now()
			for _, s := range subs {
				e, ok := s.event.(RegistryEvent)
				if !ok {
					continue
				}
				fp := fingerprint(w.cfg.Backend, e)
				if fp != s.fingerprint {
					s.fingerprint = fp
					s.mark(e.Key.String(), now)
				}
			}

		case <-flush.C:
			now := time.Now()
			for _, s := range subs {
				if s.lastChange.IsZero() || now.Sub(s.lastChange) < w.cfg.Debounce {
					continue
				}
				t := Trigger{Event: s.event, Path: s.pendingPath, At: now}
				s.lastChange = time.Time{}
				s.pendingPath = ""
				logger.Debug("Trigger: %s (%s)", t.Event, t.Path)
				w.cfg.OnTrigger(t)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (s *subscription) mark(path string, at time.Time) {
	s.pendingPath = path
	s.lastChange = at
}

func flushInterval(debounce time.Duration) time.Duration {
	tick := debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return tick
}

func (w *Watcher) addFolderWatch(fsw *fsnotify.Watcher, e FileEvent) {
	dirs := []string{e.Path}
	if e.Recursive {
		for _, sub := range filesystem.NewFolder(e.Path).Subdirectories(filesystem.Unbounded) {
			dirs = append(dirs, sub.Path())
		}
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			logger.Warn("Unable to watch %s: %v", d, err)
		}
	}
}

func (w *Watcher) handleFileEvent(fsw *fsnotify.Watcher, subs []*subscription, ev fsnotify.Event) {
	now := time.Now()
	for _, s := range subs {
		e, ok := s.event.(FileEvent)
		if !ok || !covers(e, ev.Name) {
			continue
		}
		s.mark(ev.Name, now)

		if e.Recursive && ev.Op&fsnotify.Create != 0 {
			if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
				w.addFolderWatch(fsw, FileEvent{Path: ev.Name, Recursive: true})
			}
		}
	}
}

// covers reports whether a change at name falls inside the subscription
func covers(e FileEvent, name string) bool {
	root := filepath.Clean(e.Path)
	name = filepath.Clean(name)
	if !e.CaseSensitive {
		root = strings.ToLower(root)
		name = strings.ToLower(name)
	}
	if name == root || filepath.Dir(name) == root {
		return true
	}
	return e.Recursive && strings.HasPrefix(name, root+string(filepath.Separator))
}

// fingerprint renders the observable state of a key. Two equal fingerprints
// mean nothing the subscription cares about has changed.
func fingerprint(b registry.Backend, e RegistryEvent) string {
	var sb strings.Builder
	depth := 0
	if e.WatchSubtree {
		depth = maxSubtreeDepth
	}
	writeKeyState(&sb, b, e.Key, e.ValueLevel, depth)
	return sb.String()
}

func writeKeyState(sb *strings.Builder, b registry.Backend, ref registry.KeyRef, values bool, depth int) {
	k, err := b.OpenKey(ref.Hive, ref.Path, ref.View)
	switch {
	case errors.Is(err, registry.ErrNotExist):
		sb.WriteString("!absent;")
		return
	case err != nil:
		sb.WriteString("!unreadable;")
		return
	}
	defer k.Close()

	if values {
		names, _ := k.ValueNames()
		sort.Strings(names)
		for _, n := range names {
			v, err := k.GetValue(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(sb, "v:%s=%s:%s;", strings.ToLower(n), v.Type, v.Text())
		}
	}

	subkeys, _ := k.SubKeyNames()
	sort.Strings(subkeys)
	for _, sk := range subkeys {
		fmt.Fprintf(sb, "k:%s{", strings.ToLower(sk))
		if depth > 0 {
			child := registry.KeyRef{Hive: ref.Hive, Path: ref.Path + `\` + sk, View: ref.View}
			writeKeyState(sb, b, child, values, depth-1)
		}
		sb.WriteString("};")
	}
}
