// Package hunt defines the contract shared by every hunt: metadata, the
// one-shot scan and the monitoring subscriptions that mirror it.
package hunt

import (
	"errors"
	"fmt"

	"github.com/digggggmori-pixel/ferret-hunt/internal/monitor"
	"github.com/digggggmori-pixel/ferret-hunt/internal/scope"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// Info is the metadata a hunt fixes at construction. It is read by the
// scheduler for filtering and reporting and never affects scanning.
type Info struct {
	Name        string
	Technique   Technique
	Categories  types.Set[types.Category]
	DataSources types.Set[types.DataSource]
	Tactics     types.Set[types.Tactic]
}

// Validate reports metadata that would make the hunt unschedulable
func (i Info) Validate() error {
	var errs []error
	if i.Name == "" {
		errs = append(errs, errors.New("hunt has no name"))
	}
	if i.Technique.ID == "" {
		errs = append(errs, fmt.Errorf("hunt %q has no technique", i.Name))
	}
	if len(i.DataSources) == 0 {
		errs = append(errs, fmt.Errorf("hunt %q declares no data sources", i.Name))
	}
	if len(i.Tactics) == 0 {
		errs = append(errs, fmt.Errorf("hunt %q declares no tactics", i.Name))
	}
	return errors.Join(errs...)
}

// Hunt is a rule for one adversary technique. Implementations hold no
// mutable state, so one instance may run on many scopes concurrently.
type Hunt interface {
	Info() Info
	// RunHunt scans the host within sc. Per-item failures are skipped; an
	// empty result means nothing was found.
	RunHunt(sc *scope.Scope) []types.Detection
	// GetMonitoringEvents returns subscriptions covering everything RunHunt
	// could flag, resolved against the host as it is now.
	GetMonitoringEvents() []monitor.Event
}
