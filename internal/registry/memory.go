package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend is an in-memory registry used for offline snapshots and
// on hosts without a native registry. Key and value names are
// case-insensitive.
type MemoryBackend struct {
	mu    sync.RWMutex
	is64  bool
	users map[string]struct{}
	keys  map[memKeyID]*memKey
}

type memKeyID struct {
	hive Hive
	view View
	path string // lower-cased
}

type memKey struct {
	path   string
	values map[string]memValue
	denied bool
}

type memValue struct {
	name  string
	value Value
}

// NewMemoryBackend returns an empty registry
func NewMemoryBackend(is64 bool) *MemoryBackend {
	return &MemoryBackend{
		is64:  is64,
		users: make(map[string]struct{}),
		keys:  make(map[memKeyID]*memKey),
	}
}

func idFor(hive Hive, path string, view View) memKeyID {
	return memKeyID{hive: hive, view: view, path: strings.ToLower(cleanPath(path))}
}

// CreateKey creates hive\path and its ancestors in the given view
func (m *MemoryBackend) CreateKey(hive Hive, path string, view View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(hive, path, view)
}

func (m *MemoryBackend) createLocked(hive Hive, path string, view View) *memKey {
	path = cleanPath(path)
	parts := strings.Split(path, `\`)
	var k *memKey
	for i := range parts {
		sub := strings.Join(parts[:i+1], `\`)
		id := idFor(hive, sub, view)
		if existing, ok := m.keys[id]; ok {
			k = existing
			continue
		}
		k = &memKey{path: sub, values: make(map[string]memValue)}
		m.keys[id] = k
	}
	if hive == Users && len(parts) > 0 && parts[0] != "" {
		m.users[parts[0]] = struct{}{}
	}
	return k
}

// SetValue stores a value, creating the key if needed
func (m *MemoryBackend) SetValue(hive Hive, path string, view View, name string, v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.createLocked(hive, path, view)
	k.values[strings.ToLower(name)] = memValue{name: name, value: v.clone()}
}

// DeleteValue removes a value if present
func (m *MemoryBackend) DeleteValue(hive Hive, path string, view View, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[idFor(hive, path, view)]; ok {
		delete(k.values, strings.ToLower(name))
	}
}

// DeleteKey removes a key and everything below it
func (m *MemoryBackend) DeleteKey(hive Hive, path string, view View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := idFor(hive, path, view)
	for id := range m.keys {
		if id.hive == hive && id.view == view &&
			(id.path == target.path || strings.HasPrefix(id.path, target.path+`\`)) {
			delete(m.keys, id)
		}
	}
}

// Deny makes the key fail to open with ErrAccessDenied
func (m *MemoryBackend) Deny(hive Hive, path string, view View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(hive, path, view).denied = true
}

// AddUserHive registers a loaded user hive
func (m *MemoryBackend) AddUserHive(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[sid] = struct{}{}
}

func (m *MemoryBackend) Is64Bit() bool { return m.is64 }

func (m *MemoryBackend) UserHives() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.users))
	for sid := range m.users {
		if strings.HasSuffix(strings.ToLower(sid), "_classes") {
			continue
		}
		out = append(out, sid)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryBackend) OpenKey(hive Hive, path string, view View) (Key, error) {
	if !hive.Valid() {
		return nil, fmt.Errorf("open %s\\%s: invalid hive", hive, path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref := KeyRef{Hive: hive, Path: cleanPath(path)}
	effective := ViewDefault
	if view == View32 && m.is64 {
		// Keys that are not redirected are shared between views
		if _, ok := m.keys[idFor(hive, path, View32)]; ok {
			effective = View32
		}
	}

	id := idFor(hive, path, effective)
	k, ok := m.keys[id]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", ref, ErrNotExist)
	}
	if k.denied {
		return nil, fmt.Errorf("open %s: %w", ref, ErrAccessDenied)
	}

	ref.View = effective
	return &memHandle{backend: m, id: id, name: ref.Label()}, nil
}

type memHandle struct {
	backend *MemoryBackend
	id      memKeyID
	name    string
}

func (h *memHandle) key() (*memKey, error) {
	k, ok := h.backend.keys[h.id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", h.name, ErrNotExist)
	}
	return k, nil
}

func (h *memHandle) Name() string { return h.name }

func (h *memHandle) GetValue(name string) (Value, error) {
	h.backend.mu.RLock()
	defer h.backend.mu.RUnlock()
	k, err := h.key()
	if err != nil {
		return Value{}, err
	}
	v, ok := k.values[strings.ToLower(name)]
	if !ok {
		return Value{}, fmt.Errorf("%s\\%s: %w", h.name, name, ErrNotExist)
	}
	return v.value.clone(), nil
}

func (h *memHandle) ValueNames() ([]string, error) {
	h.backend.mu.RLock()
	defer h.backend.mu.RUnlock()
	k, err := h.key()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(k.values))
	for _, v := range k.values {
		out = append(out, v.name)
	}
	sort.Strings(out)
	return out, nil
}

func (h *memHandle) SubKeyNames() ([]string, error) {
	h.backend.mu.RLock()
	defer h.backend.mu.RUnlock()
	if _, err := h.key(); err != nil {
		return nil, err
	}
	prefix := h.id.path + `\`
	var out []string
	for id, k := range h.backend.keys {
		if id.hive != h.id.hive || id.view != h.id.view || !strings.HasPrefix(id.path, prefix) {
			continue
		}
		rest := id.path[len(prefix):]
		if !strings.Contains(rest, `\`) {
			out = append(out, k.path[strings.LastIndex(k.path, `\`)+1:])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (h *memHandle) Close() error { return nil }
