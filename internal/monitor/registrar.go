package monitor

import (
	"strings"

	"github.com/digggggmori-pixel/ferret-hunt/internal/filesystem"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
)

// Registrar accumulates the events a hunt subscribes to. Registry keys are
// expanded exactly as the registry checker expands them, so a subscription
// covers the same keys a scan would read.
type Registrar struct {
	backend    registry.Backend
	userFilter func(sid string) bool

	events []Event
	seen   map[string]struct{}
}

// NewRegistrar returns an empty registrar. userFilter may be nil.
func NewRegistrar(b registry.Backend, userFilter func(sid string) bool) *Registrar {
	return &Registrar{
		backend:    b,
		userFilter: userFilter,
		seen:       make(map[string]struct{}),
	}
}

// WatchRegistryKey subscribes to value changes of hive\path and, depending
// on the flags, its WOW64 view and every user hive's copy. Keys that do not
// exist yet are included so their creation is noticed. It returns the
// number of events added.
func (r *Registrar) WatchRegistryKey(hive registry.Hive, path string, wow64, allUsers, subtree bool) int {
	if err := registry.ValidateKey(hive, path); err != nil {
		logger.Warn("Not watching invalid key %s\\%s: %v", hive, path, err)
		return 0
	}

	refs := registry.Resolve(r.backend, hive, path, registry.ResolveOptions{
		Wow64:      wow64,
		AllUsers:   allUsers,
		UserFilter: r.userFilter,
	})

	added := 0
	for _, ref := range refs {
		if r.add(RegistryEvent{Key: ref, WatchSubtree: subtree, ValueLevel: true}) {
			added++
		}
	}
	return added
}

// WatchFolder subscribes to changes inside folder. Missing folders are
// ignored and false is returned.
func (r *Registrar) WatchFolder(folder filesystem.Folder, recursive bool) bool {
	if !folder.Exists() {
		logger.Debug("Not watching missing folder %s", folder.Path())
		return false
	}
	return r.add(FileEvent{Path: folder.Path(), Recursive: recursive})
}

// Events returns the accumulated subscriptions in registration order
func (r *Registrar) Events() []Event {
	if r.events == nil {
		return []Event{}
	}
	return r.events
}

func (r *Registrar) add(e Event) bool {
	key := strings.ToLower(e.String())
	if _, dup := r.seen[key]; dup {
		return false
	}
	r.seen[key] = struct{}{}
	r.events = append(r.events, e)
	return true
}
