package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/filesystem"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrar_WatchRegistryKey(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.AddUserHive("S-1-5-21-1000")
	b.AddUserHive("S-1-5-21-1001")

	r := NewRegistrar(b, nil)
	// Keys that do not exist yet are still subscribed
	assert.Equal(t, 3, r.WatchRegistryKey(registry.CurrentUser, "Environment", true, true, false))
	// Re-registering adds nothing
	assert.Equal(t, 0, r.WatchRegistryKey(registry.CurrentUser, "Environment", true, true, false))

	events := r.Events()
	require.Len(t, events, 3)
	for _, e := range events {
		re, ok := e.(RegistryEvent)
		require.True(t, ok)
		assert.True(t, re.ValueLevel)
		assert.Equal(t, KindRegistry, re.Kind())
	}
	assert.Equal(t, "registry HKCU\\Environment", events[0].String())
	assert.Equal(t, `HKU\S-1-5-21-1000\Environment`, events[1].(RegistryEvent).Key.String())
}

func TestRegistrar_UserFilterAndWow64(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.AddUserHive("S-1-5-21-1000")
	b.AddUserHive("S-1-5-21-1001")
	b.CreateKey(registry.LocalMachine, `SOFTWARE\Vendor`, registry.ViewDefault)
	b.CreateKey(registry.LocalMachine, `SOFTWARE\Vendor`, registry.View32)

	r := NewRegistrar(b, func(sid string) bool { return sid == "S-1-5-21-1001" })
	assert.Equal(t, 2, r.WatchRegistryKey(registry.LocalMachine, `SOFTWARE\Vendor`, true, false, true))
	assert.Equal(t, 2, r.WatchRegistryKey(registry.CurrentUser, "Environment", false, true, false))

	events := r.Events()
	require.Len(t, events, 4)
	assert.Equal(t, registry.View32, events[1].(RegistryEvent).Key.View)
	assert.Contains(t, events[1].String(), "wow64_32")
	assert.True(t, events[0].(RegistryEvent).WatchSubtree)
	assert.Equal(t, `HKU\S-1-5-21-1001\Environment`, events[3].(RegistryEvent).Key.String())
}

func TestRegistrar_InvalidKey(t *testing.T) {
	r := NewRegistrar(registry.NewMemoryBackend(true), nil)
	assert.Equal(t, 0, r.WatchRegistryKey(registry.CurrentUser, `\Environment`, false, false, false))
	assert.Empty(t, r.Events())
}

func TestRegistrar_WatchFolder(t *testing.T) {
	root := t.TempDir()
	r := NewRegistrar(registry.NewMemoryBackend(true), nil)

	assert.False(t, r.WatchFolder(filesystem.NewFolder(filepath.Join(root, "missing")), true))
	assert.Empty(t, r.Events())

	assert.True(t, r.WatchFolder(filesystem.NewFolder(root), true))
	require.Len(t, r.Events(), 1)

	fe := r.Events()[0].(FileEvent)
	assert.Equal(t, filepath.Clean(root), fe.Path)
	assert.True(t, fe.Recursive)
	assert.False(t, fe.CaseSensitive)
}

func TestCovers(t *testing.T) {
	root := filepath.Join("base", "Startup")
	tests := []struct {
		name string
		e    FileEvent
		path string
		want bool
	}{
		{"direct child", FileEvent{Path: root}, filepath.Join(root, "a.lnk"), true},
		{"the folder itself", FileEvent{Path: root}, root, true},
		{"nested without recursion", FileEvent{Path: root}, filepath.Join(root, "sub", "a.lnk"), false},
		{"nested with recursion", FileEvent{Path: root, Recursive: true}, filepath.Join(root, "sub", "a.lnk"), true},
		{"sibling prefix", FileEvent{Path: root, Recursive: true}, root + "Other", false},
		{"case folded", FileEvent{Path: root}, filepath.Join("base", "STARTUP", "a.lnk"), true},
		{"case sensitive", FileEvent{Path: root, CaseSensitive: true}, filepath.Join("base", "STARTUP", "a.lnk"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, covers(tt.e, tt.path))
		})
	}
}

func TestFingerprint(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	e := RegistryEvent{Key: registry.KeyRef{Hive: registry.CurrentUser, Path: "Environment"}, ValueLevel: true}

	absent := fingerprint(b, e)
	b.CreateKey(registry.CurrentUser, "Environment", registry.ViewDefault)
	empty := fingerprint(b, e)
	assert.NotEqual(t, absent, empty)

	b.SetValue(registry.CurrentUser, "Environment", registry.ViewDefault, "UserInitMprLogonScript", registry.SzValue(`C:\a.bat`))
	withValue := fingerprint(b, e)
	assert.NotEqual(t, empty, withValue)
	assert.Equal(t, withValue, fingerprint(b, e))

	// Subkey contents only matter for subtree subscriptions
	b.SetValue(registry.CurrentUser, `Environment\Child`, registry.ViewDefault, "X", registry.SzValue("1"))
	shallow := fingerprint(b, e)
	b.SetValue(registry.CurrentUser, `Environment\Child`, registry.ViewDefault, "X", registry.SzValue("2"))
	assert.Equal(t, shallow, fingerprint(b, e))

	e.WatchSubtree = true
	deep := fingerprint(b, e)
	b.SetValue(registry.CurrentUser, `Environment\Child`, registry.ViewDefault, "X", registry.SzValue("3"))
	assert.NotEqual(t, deep, fingerprint(b, e))
}

type triggerLog struct {
	mu       sync.Mutex
	triggers []Trigger
}

func (l *triggerLog) add(t Trigger) {
	l.mu.Lock()
	l.triggers = append(l.triggers, t)
	l.mu.Unlock()
}

func (l *triggerLog) snapshot() []Trigger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Trigger(nil), l.triggers...)
}

func startWatcher(t *testing.T, b registry.Backend, events ...Event) *triggerLog {
	t.Helper()
	log := &triggerLog{}
	w, err := NewWatcher(WatcherConfig{
		Backend:      b,
		PollInterval: 10 * time.Millisecond,
		Debounce:     30 * time.Millisecond,
		OnTrigger:    log.add,
	})
	require.NoError(t, err)
	require.NoError(t, w.Subscribe(events...))
	assert.Equal(t, len(events), w.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	require.Eventually(t, w.running.Load, time.Second, 5*time.Millisecond)
	// Let Run take its initial observation
	time.Sleep(30 * time.Millisecond)
	return log
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{})
	assert.Error(t, err)
}

func TestWatcher_RegistryKeyCreated(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	r := NewRegistrar(b, nil)
	r.WatchRegistryKey(registry.CurrentUser, "Environment", false, false, false)

	log := startWatcher(t, b, r.Events()...)
	assert.Empty(t, log.snapshot())

	b.SetValue(registry.CurrentUser, "Environment", registry.ViewDefault, "UserInitMprLogonScript", registry.SzValue(`C:\evil.bat`))

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := log.snapshot()[0]
	assert.Equal(t, `HKCU\Environment`, got.Path)
	assert.Equal(t, KindRegistry, got.Event.Kind())
}

func TestWatcher_RegistryBurstIsDebounced(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.CreateKey(registry.LocalMachine, `SOFTWARE\Run`, registry.ViewDefault)
	e := RegistryEvent{Key: registry.KeyRef{Hive: registry.LocalMachine, Path: `SOFTWARE\Run`}, ValueLevel: true}

	log := startWatcher(t, b, e)
	for i := 0; i < 5; i++ {
		b.SetValue(registry.LocalMachine, `SOFTWARE\Run`, registry.ViewDefault, "Updater", registry.DwordValue(uint32(i)))
	}

	require.Eventually(t, func() bool { return len(log.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, log.snapshot(), 1)
}

func TestWatcher_FolderChanges(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	r := NewRegistrar(registry.NewMemoryBackend(true), nil)
	require.True(t, r.WatchFolder(filesystem.NewFolder(root), true))

	log := startWatcher(t, registry.NewMemoryBackend(true), r.Events()...)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "payload.bat"), []byte("echo"), 0o644))

	require.Eventually(t, func() bool { return len(log.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	got := log.snapshot()[0]
	assert.Equal(t, KindFile, got.Event.Kind())
	assert.Equal(t, filepath.Join(nested, "payload.bat"), got.Path)
}

func TestWatcher_SubscribeWhileRunning(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	w, err := NewWatcher(WatcherConfig{Backend: b, OnTrigger: func(Trigger) {}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	require.Eventually(t, w.running.Load, time.Second, 5*time.Millisecond)

	assert.Error(t, w.Subscribe(FileEvent{Path: t.TempDir()}))
	assert.Error(t, w.Run(ctx))

	cancel()
	assert.NoError(t, <-done)
}
