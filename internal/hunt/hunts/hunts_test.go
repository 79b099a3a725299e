package hunts

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/monitor"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scope"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("echo"), 0o644))
}

func userStartup(usersDir, user string) string {
	return filepath.Join(usersDir, user, filepath.FromSlash(startupRel))
}

func countKinds(ds []types.Detection) (reg, file int) {
	for _, d := range ds {
		switch d.Data.(type) {
		case types.RegistryDetectionData:
			reg++
		case types.FileDetectionData:
			file++
		}
	}
	return reg, file
}

func newT1037(t *testing.T, env hunt.Environment) *T1037 {
	t.Helper()
	h, err := NewT1037(env)
	require.NoError(t, err)
	require.NoError(t, h.Info().Validate())
	return h
}

func TestT1037_LogonScript(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.SetValue(registry.CurrentUser, "Environment", registry.ViewDefault, logonScriptValue, registry.SzValue(""))
	h := newT1037(t, hunt.Environment{Registry: b})

	got := h.RunHunt(scope.Local())
	require.Len(t, got, 1)

	d := got[0]
	assert.Equal(t, types.CertaintyModerate, d.Certainty)
	assert.Equal(t, types.DetectionKindRegistry, d.Data.Kind())
	assert.Contains(t, d.Context.Techniques, hunt.T1037_001.String())
	assert.Equal(t, []string{"T1037"}, d.Context.Hunts)

	data := d.Data.(types.RegistryDetectionData)
	assert.Equal(t, `HKCU\Environment`, data.Entry.Key)
	assert.Equal(t, logonScriptValue, data.Entry.ValueName)
	assert.Equal(t, types.ReferenceFile, data.Reference)
}

func TestT1037_NonEmptyScriptNotReported(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.SetValue(registry.CurrentUser, "Environment", registry.ViewDefault, logonScriptValue, registry.SzValue(`C:\evil.bat`))
	h := newT1037(t, hunt.Environment{Registry: b})

	assert.Empty(t, h.RunHunt(scope.Local()))
}

func TestT1037_UserHivesRespectScope(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.SetValue(registry.Users, `S-1-5-21-1000\Environment`, registry.ViewDefault, logonScriptValue, registry.SzValue(""))
	b.SetValue(registry.Users, `S-1-5-21-1001\Environment`, registry.ViewDefault, logonScriptValue, registry.SzValue(""))
	h := newT1037(t, hunt.Environment{Registry: b})

	assert.Len(t, h.RunHunt(scope.Local()), 2)

	sc, err := scope.New(scope.WithUsers("S-1-5-21-1001"))
	require.NoError(t, err)
	got := h.RunHunt(sc)
	require.Len(t, got, 1)
	assert.Equal(t, `HKU\S-1-5-21-1001\Environment`, got[0].Data.(types.RegistryDetectionData).Entry.Key)
}

func TestT1037_StartupFolders(t *testing.T) {
	root := t.TempDir()
	usersDir := filepath.Join(root, "Users")
	programData := filepath.Join(root, "ProgramData")

	writeFile(t, filepath.Join(userStartup(usersDir, "alice"), "run.bat"))
	writeFile(t, filepath.Join(userStartup(usersDir, "alice"), "a", "b", "c", "deep.vbs"))
	writeFile(t, filepath.Join(userStartup(usersDir, "bob"), "update.lnk"))
	// carol's Startup folder is a file, so it cannot be listed
	writeFile(t, userStartup(usersDir, "carol"))
	writeFile(t, filepath.Join(programData, filepath.FromSlash(commonStartupRel), "all.lnk"))
	dropped := time.Date(2023, 11, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(userStartup(usersDir, "bob"), "update.lnk"), dropped, dropped))

	h := newT1037(t, hunt.Environment{
		Registry:    registry.NewMemoryBackend(true),
		UsersDir:    usersDir,
		ProgramData: programData,
	})
	got := h.RunHunt(scope.Local())

	reg, file := countKinds(got)
	assert.Equal(t, 0, reg)
	assert.Equal(t, 4, file)
	for _, d := range got {
		assert.Equal(t, types.CertaintyNone, d.Certainty)
		require.NotNil(t, d.Context.FirstEvidence)
		assert.Equal(t, d.Data.(types.FileDetectionData).ModifiedAt, *d.Context.FirstEvidence)
		if d.Data.(types.FileDetectionData).Name == "update.lnk" {
			assert.True(t, dropped.Equal(*d.Context.FirstEvidence))
		}
	}

	sc, err := scope.New(scope.WithExclude(`**\alice\**`, "**/alice/**"))
	require.NoError(t, err)
	_, file = countKinds(h.RunHunt(sc))
	assert.Equal(t, 2, file)
}

func TestT1037_MonitoringEvents(t *testing.T) {
	root := t.TempDir()
	usersDir := filepath.Join(root, "Users")
	programData := filepath.Join(root, "ProgramData")
	require.NoError(t, os.MkdirAll(userStartup(usersDir, "alice"), 0o755))
	require.NoError(t, os.MkdirAll(userStartup(usersDir, "bob"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(usersDir, "carol"), 0o755))
	require.NoError(t, os.MkdirAll(programData, 0o755))

	h := newT1037(t, hunt.Environment{
		Registry:    registry.NewMemoryBackend(true),
		UsersDir:    usersDir,
		ProgramData: programData,
	})

	folders := func(events []monitor.Event) int {
		n := 0
		for _, e := range events {
			if fe, ok := e.(monitor.FileEvent); ok {
				assert.True(t, fe.Recursive)
				n++
			}
		}
		return n
	}

	events := h.GetMonitoringEvents()
	assert.Equal(t, 2, folders(events))
	assert.Len(t, events, 3)
	assert.Equal(t, `HKCU\Environment`, events[0].(monitor.RegistryEvent).Key.String())

	require.NoError(t, os.MkdirAll(filepath.Join(programData, filepath.FromSlash(commonStartupRel)), 0o755))
	assert.Equal(t, 3, folders(h.GetMonitoringEvents()))
}

func TestNewT1037_RequiresRegistry(t *testing.T) {
	_, err := NewT1037(hunt.Environment{})
	assert.Error(t, err)
}

func TestNewHunts_ValidateKeys(t *testing.T) {
	env := hunt.Environment{Registry: registry.NewMemoryBackend(true)}

	saved := logonScriptKey
	logonScriptKey = hiveKey{registry.CurrentUser, `\Environment`, true}
	_, err := NewT1037(env)
	logonScriptKey = saved
	assert.ErrorContains(t, err, "T1037")

	savedRun := runKeys
	runKeys = append([]hiveKey{{registry.Hive(42), runPath, false}}, savedRun...)
	_, err = NewT1547(env)
	runKeys = savedRun
	assert.ErrorContains(t, err, "T1547")

	_, err = NewT1037(env)
	assert.NoError(t, err)
	_, err = NewT1547(env)
	assert.NoError(t, err)
}

func TestT1547_RunKeys(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.SetValue(registry.LocalMachine, runPath, registry.ViewDefault, "Agent", registry.SzValue(`"C:\Program Files\Vendor\agent.exe" /background`))
	b.SetValue(registry.LocalMachine, runPath, registry.View32, "Legacy", registry.SzValue(`C:\x86\legacy.exe`))
	b.SetValue(registry.LocalMachine, runPath+"Once", registry.ViewDefault, "Flag", registry.DwordValue(1))
	b.SetValue(registry.Users, `S-1-5-21-1000\`+runPath, registry.ViewDefault, "Updater", registry.SzValue(`C:\Users\a\AppData\u.exe -q`))
	b.SetValue(registry.Users, `S-1-5-21-1001\`+runPath, registry.ViewDefault, "Other", registry.SzValue(`C:\o.exe`))

	h, err := NewT1547(hunt.Environment{Registry: b})
	require.NoError(t, err)

	sc, err := scope.New(scope.WithUsers("S-1-5-21-1000"))
	require.NoError(t, err)
	got := h.RunHunt(sc)
	require.Len(t, got, 3)

	var paths []string
	for _, d := range got {
		assert.Equal(t, types.CertaintyLow, d.Certainty)
		assert.Contains(t, d.Context.Techniques, hunt.T1547_001.String())
		data := d.Data.(types.RegistryDetectionData)
		assert.Equal(t, types.ReferenceCommand, data.Reference)
		paths = append(paths, data.ExtractedPath)
	}
	assert.Equal(t, []string{
		`C:\Program Files\Vendor\agent.exe`,
		`C:\x86\legacy.exe`,
		`C:\Users\a\AppData\u.exe`,
	}, paths)
	assert.Equal(t, "wow64_32", got[1].Data.(types.RegistryDetectionData).Entry.View)
}

func TestT1547_MonitoringEvents(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.AddUserHive("S-1-5-21-1000")

	h, err := NewT1547(hunt.Environment{Registry: b})
	require.NoError(t, err)

	// HKLM Run, HKLM RunOnce, then HKCU and one user hive for each of the two user keys
	events := h.GetMonitoringEvents()
	assert.Len(t, events, 6)
	for _, e := range events {
		assert.Equal(t, monitor.KindRegistry, e.Kind())
	}
}

func TestRegisterBuiltins(t *testing.T) {
	c := hunt.NewCatalog()
	require.NoError(t, Register(c, hunt.Environment{Registry: registry.NewMemoryBackend(true)}))
	assert.Len(t, c.All(), 2)

	assert.Error(t, Register(hunt.NewCatalog(), hunt.Environment{}))
}

func TestCommandPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"C:\Program Files\x.exe" /run`, `C:\Program Files\x.exe`},
		{`"C:\unterminated.exe`, `C:\unterminated.exe`},
		{`C:\Program Files\Vendor\tool.exe -silent`, `C:\Program Files\Vendor\tool.exe`},
		{`rundll32.exe C:\evil.dll,Entry`, `rundll32.exe`},
		{`C:\scripts\a.bat`, `C:\scripts\a.bat`},
		{`notepad C:\x.txt`, `notepad`},
		{`  `, ``},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, commandPath(tt.in))
		})
	}
}

func TestHunts_ConcurrentScopes(t *testing.T) {
	b := registry.NewMemoryBackend(true)
	b.SetValue(registry.LocalMachine, runPath, registry.ViewDefault, "Agent", registry.SzValue(`C:\agent.exe`))
	for _, sid := range []string{"S-1-5-21-1000", "S-1-5-21-1001"} {
		b.SetValue(registry.Users, sid+`\Environment`, registry.ViewDefault, logonScriptValue, registry.SzValue(""))
		b.SetValue(registry.Users, sid+`\`+runPath, registry.ViewDefault, "Sync", registry.SzValue(`C:\sync.exe`))
	}
	usersDir := filepath.Join(t.TempDir(), "Users")
	writeFile(t, filepath.Join(userStartup(usersDir, "alice"), "run.bat"))

	env := hunt.Environment{Registry: b, UsersDir: usersDir}
	hunts := []hunt.Hunt{newT1037(t, env)}
	t1547, err := NewT1547(env)
	require.NoError(t, err)
	hunts = append(hunts, t1547)

	var scopes []*scope.Scope
	for _, sid := range []string{"S-1-5-21-1000", "S-1-5-21-1001"} {
		sc, err := scope.New(scope.WithName(sid), scope.WithUsers(sid))
		require.NoError(t, err)
		scopes = append(scopes, sc)
	}
	events := make([]int, len(hunts))
	for i, h := range hunts {
		events[i] = len(h.GetMonitoringEvents())
	}

	const rounds = 10
	type outcome struct{ hunt, scope, detections, events int }
	results := make(chan outcome, rounds*len(hunts)*len(scopes))
	var wg sync.WaitGroup
	for r := 0; r < rounds; r++ {
		for hi, h := range hunts {
			for si, sc := range scopes {
				hi, h, si, sc := hi, h, si, sc
				wg.Add(1)
				go func() {
					defer wg.Done()
					results <- outcome{hi, si, len(h.RunHunt(sc)), len(h.GetMonitoringEvents())}
				}()
			}
		}
	}
	wg.Wait()
	close(results)

	n := 0
	for o := range results {
		n++
		// one user hive plus the Startup file, or HKLM plus one user hive
		assert.Equal(t, 2, o.detections, "hunt %d scope %d", o.hunt, o.scope)
		assert.Equal(t, events[o.hunt], o.events)
	}
	assert.Equal(t, rounds*len(hunts)*len(scopes), n)
}
