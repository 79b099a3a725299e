package registry

import (
	"errors"

	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
)

// ResolveOptions controls how a hive\path pair is expanded
type ResolveOptions struct {
	// Wow64 adds the 32-bit view of each key on 64-bit hosts
	Wow64 bool
	// AllUsers adds HKU\<sid>\path for every loaded user hive
	AllUsers bool
	// UserFilter, when set, drops user hives it rejects
	UserFilter func(sid string) bool
}

// Resolve expands hive\path into the keys a check or a watch should cover:
// the key itself, then one key per loaded user hive. Each is followed by its
// WOW64 counterpart when that view resolves to a different key. Native keys
// are returned whether or not they exist; WOW64 keys only when they exist.
// User hives are enumerated on every call.
func Resolve(b Backend, hive Hive, path string, opts ResolveOptions) []KeyRef {
	path = cleanPath(path)
	bases := []KeyRef{{Hive: hive, Path: path}}

	if opts.AllUsers {
		sids, err := b.UserHives()
		if err != nil {
			logger.Debug("Unable to enumerate user hives: %v", err)
		}
		for _, sid := range sids {
			if opts.UserFilter != nil && !opts.UserFilter(sid) {
				continue
			}
			bases = append(bases, KeyRef{Hive: Users, Path: joinPath(sid, path)})
		}
	}

	if !opts.Wow64 || !b.Is64Bit() {
		return bases
	}

	out := make([]KeyRef, 0, len(bases)*2)
	for _, ref := range bases {
		out = append(out, ref)
		if wow, ok := distinctWow64(b, ref); ok {
			out = append(out, wow)
		}
	}
	return out
}

// distinctWow64 returns the 32-bit view of ref when it is a separate key
func distinctWow64(b Backend, ref KeyRef) (KeyRef, bool) {
	wow := KeyRef{Hive: ref.Hive, Path: ref.Path, View: View32}
	k32, err := b.OpenKey(wow.Hive, wow.Path, View32)
	if err != nil {
		if !errors.Is(err, ErrNotExist) {
			logger.Debug("WOW64 view not readable: %s (%v)", wow, err)
		}
		return KeyRef{}, false
	}
	defer k32.Close()

	native, err := b.OpenKey(ref.Hive, ref.Path, ViewDefault)
	if err != nil {
		// Only the redirected key exists
		return wow, true
	}
	defer native.Close()

	if native.Name() == k32.Name() {
		return KeyRef{}, false
	}
	return wow, true
}
