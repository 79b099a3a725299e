package hunts

import (
	"errors"
	"fmt"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/filesystem"
	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/monitor"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scope"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

const logonScriptValue = "UserInitMprLogonScript"

var logonScriptKey = hiveKey{registry.CurrentUser, "Environment", true}

// T1037 hunts for boot or logon initialization scripts: the per-user logon
// script value and anything placed in a Startup folder.
type T1037 struct {
	env    hunt.Environment
	info   hunt.Info
	checks registry.CheckSet
}

// NewT1037 builds the hunt against env
func NewT1037(env hunt.Environment) (*T1037, error) {
	if env.Registry == nil {
		return nil, errors.New("T1037: registry backend is required")
	}
	if err := validateKeys("T1037", logonScriptKey); err != nil {
		return nil, err
	}

	empty := registry.SzValue("")
	checks, err := registry.NewCheckSet(registry.ValueCheck{
		Name:      logonScriptValue,
		Default:   &empty,
		Predicate: registry.CheckSzEmpty,
	})
	if err != nil {
		return nil, fmt.Errorf("T1037: %w", err)
	}

	return &T1037{
		env: env,
		info: hunt.Info{
			Name:        "T1037",
			Technique:   hunt.T1037,
			Categories:  types.NewSet(types.CategoryConfigurations, types.CategoryFiles),
			DataSources: types.NewSet(types.DataSourceRegistry, types.DataSourceFileSystem),
			Tactics:     types.NewSet(types.TacticPersistence, types.TacticPrivilegeEscalation),
		},
		checks: checks,
	}, nil
}

func (h *T1037) Info() hunt.Info { return h.info }

// RunHunt checks the logon script value in every user hive and reports
// every file under the Startup folders.
func (h *T1037) RunHunt(sc *scope.Scope) []types.Detection {
	logger.Section("Hunt " + h.info.Technique.String())
	startTime := time.Now()
	sink := hunt.NewCollector(h.info.Name)
	if sc == nil {
		sc = scope.Local()
	}

	checker := registry.Checker{
		Backend:    h.env.Registry,
		UserFilter: sc.UserInScope,
		KeyFilter:  sc.PathInScope,
	}
	for _, d := range checker.CheckValues(logonScriptKey.hive, logonScriptKey.path, h.checks, true, logonScriptKey.allUsers) {
		sink.Add(types.CertaintyModerate,
			registryEvidence(d, types.ReferenceFile),
			hunt.T1037_001.Context("logon script runs at user logon"))
	}

	for _, folder := range h.startupFolders() {
		logger.Verbose(1, "Scanning %s", folder.Path())
		for _, f := range folder.Files(nil, filesystem.Unbounded) {
			if !sc.PathInScope(f.Path) {
				continue
			}
			sink.Add(types.CertaintyNone, fileEvidence(f), fileContext(f, hunt.T1037, "file in startup folder"))
		}
	}

	detections := sink.Detections()
	logger.Timing("T1037.RunHunt", startTime)
	logger.Info("T1037: %d detections", len(detections))
	return detections
}

// GetMonitoringEvents watches the logon script keys and every Startup
// folder that exists now.
func (h *T1037) GetMonitoringEvents() []monitor.Event {
	r := monitor.NewRegistrar(h.env.Registry, nil)
	r.WatchRegistryKey(logonScriptKey.hive, logonScriptKey.path, true, logonScriptKey.allUsers, false)
	for _, folder := range h.startupFolders() {
		r.WatchFolder(folder, true)
	}
	return r.Events()
}

// startupFolders lists the Startup folders that currently exist: one per
// user profile plus the machine-wide folder.
func (h *T1037) startupFolders() []filesystem.Folder {
	var candidates []filesystem.Folder
	if h.env.UsersDir != "" {
		for _, profile := range filesystem.NewFolder(h.env.UsersDir).Subdirectories(1) {
			candidates = append(candidates, profile.Child(startupRel))
		}
	}
	if h.env.ProgramData != "" {
		candidates = append(candidates, filesystem.NewFolder(h.env.ProgramData).Child(commonStartupRel))
	}

	var out []filesystem.Folder
	for _, f := range candidates {
		if f.Exists() {
			out = append(out, f)
		}
	}
	return out
}
