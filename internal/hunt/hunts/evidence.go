// Package hunts contains the built-in hunts.
package hunts

import (
	"fmt"
	"strings"

	"github.com/digggggmori-pixel/ferret-hunt/internal/filesystem"
	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// startupRel is a user's Startup folder relative to the profile directory
const startupRel = "AppData/Roaming/Microsoft/Windows/Start Menu/Programs/Startup"

// commonStartupRel is the all-users Startup folder relative to ProgramData
const commonStartupRel = "Microsoft/Windows/Start Menu/Programs/Startup"

// hiveKey is a registry key a hunt inspects. allUsers adds the same path
// under every loaded user hive.
type hiveKey struct {
	hive     registry.Hive
	path     string
	allUsers bool
}

func (k hiveKey) String() string { return k.hive.String() + `\` + k.path }

func validateKeys(hunt string, keys ...hiveKey) error {
	for _, k := range keys {
		if err := registry.ValidateKey(k.hive, k.path); err != nil {
			return fmt.Errorf("%s: %w", hunt, err)
		}
	}
	return nil
}

// Register adds every built-in hunt to c
func Register(c *hunt.Catalog, env hunt.Environment) error {
	t1037, err := NewT1037(env)
	if err != nil {
		return err
	}
	t1547, err := NewT1547(env)
	if err != nil {
		return err
	}
	for _, h := range []hunt.Hunt{t1037, t1547} {
		if err := c.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func registryEvidence(d registry.RegistryDetection, ref types.RegistryReferenceType) types.RegistryDetectionData {
	data := types.RegistryDetectionData{
		Entry:     d.Entry(),
		Reference: ref,
	}
	switch ref {
	case types.ReferenceFile, types.ReferenceFolder:
		data.ExtractedPath = strings.Trim(strings.TrimSpace(d.Value.Text()), `"`)
	case types.ReferenceCommand:
		data.ExtractedPath = commandPath(d.Value.Text())
	}
	return data
}

// fileContext attributes a file finding to t and dates the evidence by the
// file's modification time.
func fileContext(f filesystem.File, t hunt.Technique, note string) types.DetectionContext {
	ctx := t.Context(note)
	modified := f.ModTime
	ctx.FirstEvidence = &modified
	return ctx
}

func fileEvidence(f filesystem.File) types.FileDetectionData {
	return types.FileDetectionData{
		Path:       f.Path,
		Name:       f.Name,
		Size:       f.Size,
		ModifiedAt: f.ModTime,
		IsHidden:   f.Hidden,
	}
}

// commandPath extracts the program from a command line such as
// `"C:\Program Files\x.exe" /run` or `rundll32.exe a.dll,Entry`.
func commandPath(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if strings.HasPrefix(cmd, `"`) {
		if end := strings.Index(cmd[1:], `"`); end >= 0 {
			return cmd[1 : end+1]
		}
		return strings.TrimPrefix(cmd, `"`)
	}

	// Unquoted paths with spaces are ambiguous; prefer the shortest prefix
	// that ends in an executable extension.
	lower := strings.ToLower(cmd)
	best := -1
	for _, ext := range []string{".exe", ".bat", ".cmd", ".com", ".ps1", ".vbs", ".js", ".dll"} {
		if i := strings.Index(lower, ext); i >= 0 {
			end := i + len(ext)
			boundary := end == len(cmd) || cmd[end] == ' ' || cmd[end] == ','
			if boundary && (best < 0 || end < best) {
				best = end
			}
		}
	}
	if best > 0 {
		return cmd[:best]
	}
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		return cmd[:i]
	}
	return cmd
}
