package scan

import (
	"os"
	"runtime"
	"strings"

	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

const currentVersionKey = `SOFTWARE\Microsoft\Windows NT\CurrentVersion`

// GetHostInfo describes the host, reading the Windows product name and build
// from b when available.
func GetHostInfo(b registry.Backend) types.HostInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return types.HostInfo{
		Hostname:  hostname,
		OSVersion: osVersion(b),
		Arch:      runtime.GOARCH,
	}
}

func osVersion(b registry.Backend) string {
	if b == nil {
		return runtime.GOOS
	}
	k, err := b.OpenKey(registry.LocalMachine, currentVersionKey, registry.ViewDefault)
	if err != nil {
		return runtime.GOOS
	}
	defer k.Close()

	var parts []string
	for _, name := range []string{"ProductName", "DisplayVersion", "CurrentBuild"} {
		if v, err := k.GetValue(name); err == nil && v.Text() != "" {
			parts = append(parts, v.Text())
		}
	}
	if len(parts) == 0 {
		return runtime.GOOS
	}
	return strings.Join(parts, " ")
}
