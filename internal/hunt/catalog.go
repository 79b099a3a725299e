package hunt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// Catalog holds the hunts available to the scheduler
type Catalog struct {
	mu    sync.RWMutex
	hunts []Hunt
	names map[string]struct{}
}

// NewCatalog returns an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{names: make(map[string]struct{})}
}

// Register adds h after validating its metadata. Names are unique
// regardless of case.
func (c *Catalog) Register(h Hunt) error {
	info := h.Info()
	if err := info.Validate(); err != nil {
		return fmt.Errorf("register hunt: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(info.Name)
	if _, dup := c.names[key]; dup {
		return fmt.Errorf("register hunt: %q already registered", info.Name)
	}
	c.names[key] = struct{}{}
	c.hunts = append(c.hunts, h)
	return nil
}

// All returns every registered hunt ordered by name
func (c *Catalog) All() []Hunt {
	c.mu.RLock()
	out := append([]Hunt(nil), c.hunts...)
	c.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Info().Name < out[j].Info().Name })
	return out
}

// Filter narrows the catalog. Empty tag sets match every hunt.
type Filter struct {
	Tactics     types.Set[types.Tactic]
	DataSources types.Set[types.DataSource]
	Categories  types.Set[types.Category]
	// Disabled lists hunt names to leave out
	Disabled []string
}

// Matches reports whether info passes the filter
func (f Filter) Matches(info Info) bool {
	for _, name := range f.Disabled {
		if strings.EqualFold(name, info.Name) {
			return false
		}
	}
	if len(f.Tactics) > 0 && !info.Tactics.HasAny(f.Tactics) {
		return false
	}
	if len(f.DataSources) > 0 && !info.DataSources.HasAny(f.DataSources) {
		return false
	}
	if len(f.Categories) > 0 && !info.Categories.HasAny(f.Categories) {
		return false
	}
	return true
}

// Filter returns the hunts matching f, ordered by name
func (c *Catalog) Filter(f Filter) []Hunt {
	var out []Hunt
	for _, h := range c.All() {
		if f.Matches(h.Info()) {
			out = append(out, h)
		}
	}
	return out
}
