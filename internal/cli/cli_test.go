package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshot = `
is_64bit: false
keys:
  - key: HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Run
    values:
      - {name: Updater, type: REG_SZ, data: '"C:\Program Files\Up\up.exe" --silent'}
      - {name: Blank, type: REG_SZ, data: ""}
`

// fixture writes a config with logging off and a registry snapshot
func fixture(t *testing.T, cfg string) (configPath, snapshotPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "ferret-hunt.yaml")
	snapshotPath = filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  enabled: false\n"+cfg), 0o644))
	require.NoError(t, os.WriteFile(snapshotPath, []byte(testSnapshot), 0o644))
	return configPath, snapshotPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot("test")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestScanCmd_JSON(t *testing.T) {
	cfg, snap := fixture(t, "")
	outFile := filepath.Join(t.TempDir(), "results", "scan.json")

	out, err := run(t, "--config", cfg, "--snapshot", snap, "scan", "--json", "--out", outFile)
	require.NoError(t, err)

	var result types.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Summary.HuntsRun)
	require.Len(t, result.Detections, 1)

	d := result.Detections[0]
	assert.Equal(t, types.CertaintyLow, d.Certainty)
	assert.Equal(t, []string{"T1547"}, d.Context.Hunts)
	reg, ok := d.Data.(types.RegistryDetectionData)
	require.True(t, ok)
	assert.Equal(t, `C:\Program Files\Up\up.exe`, reg.ExtractedPath)

	assert.FileExists(t, outFile)
}

func TestScanCmd_HumanReport(t *testing.T) {
	cfg, snap := fixture(t, "")
	reportDir := t.TempDir()

	out, err := run(t, "--config", cfg, "--snapshot", snap, "scan", "--report", reportDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Scan Complete!")
	assert.Contains(t, out, `HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Run\Updater`)
	assert.Contains(t, out, "Detailed report:")

	reports, err := filepath.Glob(filepath.Join(reportDir, "scan_report_*.txt"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestReportCmd_RendersSavedResult(t *testing.T) {
	cfg, snap := fixture(t, "")
	saved := filepath.Join(t.TempDir(), "scan.json")
	_, err := run(t, "--config", cfg, "--snapshot", snap, "scan", "--json", "--out", saved)
	require.NoError(t, err)

	reportDir := t.TempDir()
	out, err := run(t, "report", saved, "--report", reportDir)
	require.NoError(t, err)
	assert.Contains(t, out, `HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Run\Updater`)
	assert.Contains(t, out, "Scan Complete!")

	reports, err := filepath.Glob(filepath.Join(reportDir, "scan_report_*.txt"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, err = run(t, "report", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	_, err = run(t, "report")
	assert.Error(t, err)
}

func TestScanCmd_HuntSelection(t *testing.T) {
	cfg, snap := fixture(t, "")

	out, err := run(t, "--config", cfg, "--snapshot", snap, "scan", "--json", "--disable", "T1547")
	require.NoError(t, err)
	var result types.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Summary.HuntsRun)
	assert.Empty(t, result.Detections)

	_, err = run(t, "--config", cfg, "--snapshot", snap, "scan", "--tactic", "impact")
	assert.ErrorContains(t, err, "no hunts selected")

	_, err = run(t, "--config", cfg, "--snapshot", snap, "scan", "--tactic", "teleportation")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestScanCmd_BadInputs(t *testing.T) {
	cfg, _ := fixture(t, "")

	_, err := run(t, "--config", cfg, "--snapshot", filepath.Join(t.TempDir(), "missing.yaml"), "scan")
	assert.Error(t, err)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "scan")
	assert.Error(t, err)
}

func TestHuntsCmd(t *testing.T) {
	cfg, snap := fixture(t, "hunts:\n  disabled: [T1037]\n")

	out, err := run(t, "--config", cfg, "--snapshot", snap, "hunts")
	require.NoError(t, err)
	assert.Regexp(t, `T1037\s+T1037 - Boot or Logon Initialization Scripts\s+.*\s+no\n`, out)
	assert.Regexp(t, `T1547\s+T1547 - Boot or Logon Autostart Execution\s+.*\s+yes\n`, out)
	assert.Contains(t, out, `registry HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`)
}

func TestMonitorCmd_StopsWithContext(t *testing.T) {
	cfg, snap := fixture(t, "monitor:\n  registry_poll_interval: 10ms\n  debounce: 10ms\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRoot("test")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", cfg, "--snapshot", snap, "monitor"})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Watching T1547 - Boot or Logon Autostart Execution")
}

// lockedBuffer is written by the monitor loop and read by the test
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMonitorCmd_ReloadsConfiguration(t *testing.T) {
	cfg, snap := fixture(t, "monitor:\n  registry_poll_interval: 10ms\n  debounce: 10ms\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewRoot("test")
	out := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", cfg, "--snapshot", snap, "monitor"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching T1037")
	}, 3*time.Second, 10*time.Millisecond)

	// A broken file is rejected and monitoring carries on
	require.NoError(t, os.WriteFile(cfg, []byte("workers: [\n"), 0o644))
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "configuration not reloaded")
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  enabled: false\nhunts:\n  disabled: [T1037]\n"), 0o644))
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Configuration reloaded from "+cfg)
	}, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "Watching T1547") == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, strings.Count(out.String(), "Watching T1037"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
