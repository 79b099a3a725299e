// Package monitor describes the change notifications a hunt wants and
// provides a watcher that delivers them.
package monitor

import (
	"fmt"

	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
)

// EventKind names the variant of a monitoring event
type EventKind string

const (
	KindRegistry EventKind = "registry"
	KindFile     EventKind = "file"
)

// Event is a subscription to a change source. The set of implementations is
// closed: RegistryEvent and FileEvent.
type Event interface {
	Kind() EventKind
	String() string
	event()
}

// RegistryEvent fires when the key changes
type RegistryEvent struct {
	Key registry.KeyRef
	// WatchSubtree includes every subkey below Key
	WatchSubtree bool
	// ValueLevel includes value additions, deletions and modifications;
	// otherwise only the key's existence and subkey list are observed.
	ValueLevel bool
}

func (RegistryEvent) Kind() EventKind { return KindRegistry }
func (RegistryEvent) event()          {}

func (e RegistryEvent) String() string {
	s := "registry " + e.Key.String()
	if e.Key.View == registry.View32 {
		s += " [" + e.Key.View.String() + "]"
	}
	if e.WatchSubtree {
		s += " (subtree)"
	}
	return s
}

// FileEvent fires when something inside the folder at Path changes
type FileEvent struct {
	Path          string
	Recursive     bool
	CaseSensitive bool
}

func (FileEvent) Kind() EventKind { return KindFile }
func (FileEvent) event()          {}

func (e FileEvent) String() string {
	if e.Recursive {
		return fmt.Sprintf("folder %s (recursive)", e.Path)
	}
	return "folder " + e.Path
}
