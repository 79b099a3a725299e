package hunts

import (
	"errors"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/hunt"
	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/internal/monitor"
	"github.com/digggggmori-pixel/ferret-hunt/internal/registry"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scope"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

var runKeys = []hiveKey{
	{registry.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, false},
	{registry.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\RunOnce`, false},
	{registry.CurrentUser, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, true},
	{registry.CurrentUser, `SOFTWARE\Microsoft\Windows\CurrentVersion\RunOnce`, true},
}

// T1547 reports every command registered under the Run and RunOnce keys
type T1547 struct {
	env  hunt.Environment
	info hunt.Info
}

// NewT1547 builds the hunt against env
func NewT1547(env hunt.Environment) (*T1547, error) {
	if env.Registry == nil {
		return nil, errors.New("T1547: registry backend is required")
	}
	if err := validateKeys("T1547", runKeys...); err != nil {
		return nil, err
	}
	return &T1547{
		env: env,
		info: hunt.Info{
			Name:        "T1547",
			Technique:   hunt.T1547,
			Categories:  types.NewSet(types.CategoryConfigurations),
			DataSources: types.NewSet(types.DataSourceRegistry),
			Tactics:     types.NewSet(types.TacticPersistence, types.TacticPrivilegeEscalation),
		},
	}, nil
}

func (h *T1547) Info() hunt.Info { return h.info }

func (h *T1547) RunHunt(sc *scope.Scope) []types.Detection {
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
	for _, k := range runKeys {
		logger.Verbose(1, "Scanning %s", k)
		for _, d := range checker.CheckKeyValues(k.hive, k.path, registry.CheckSzNotEmpty, true, k.allUsers) {
			sink.Add(types.CertaintyLow,
				registryEvidence(d, types.ReferenceCommand),
				hunt.T1547_001.Context("runs at logon"))
		}
	}

	detections := sink.Detections()
	logger.Timing("T1547.RunHunt", startTime)
	logger.Info("T1547: %d detections", len(detections))
	return detections
}

func (h *T1547) GetMonitoringEvents() []monitor.Event {
	r := monitor.NewRegistrar(h.env.Registry, nil)
	for _, k := range runKeys {
		r.WatchRegistryKey(k.hive, k.path, true, k.allUsers, false)
	}
	return r.Events()
}
