package registry

import "errors"

var (
	// ErrNotExist is returned for keys and values that are absent
	ErrNotExist = errors.New("registry: not found")
	// ErrAccessDenied is returned when a key cannot be opened or read
	ErrAccessDenied = errors.New("registry: access denied")
)

// Backend opens registry keys. Implementations only ever read.
type Backend interface {
	// OpenKey opens hive\path in the requested view for reading
	OpenKey(hive Hive, path string, view View) (Key, error)
	// UserHives lists the SIDs of user hives loaded under HKEY_USERS
	UserHives() ([]string, error)
	// Is64Bit reports whether the host has a separate WOW64 view
	Is64Bit() bool
}

// Key is an open registry key
type Key interface {
	// Name identifies the underlying key; two handles with the same name
	// refer to the same key even when opened through different views.
	Name() string
	GetValue(name string) (Value, error)
	ValueNames() ([]string, error)
	SubKeyNames() ([]string, error)
	Close() error
}

// Exists reports whether the key can be opened
func Exists(b Backend, ref KeyRef) bool {
	k, err := b.OpenKey(ref.Hive, ref.Path, ref.View)
	if err != nil {
		return false
	}
	k.Close()
	return true
}
