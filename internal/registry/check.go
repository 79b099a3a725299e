package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// Predicate inspects a resolved value and returns true when it should be reported
type Predicate func(Value) bool

// ValueCheck describes one registry value to evaluate
type ValueCheck struct {
	Name string
	// Default is used when the value is absent. A nil Default skips
	// absent values.
	Default *Value
	// Wow64 also checks the 32-bit view for this value on 64-bit hosts
	Wow64     bool
	Predicate Predicate
}

// CheckSet is a validated, ordered set of value checks
type CheckSet struct {
	checks []ValueCheck
}

// NewCheckSet validates checks: each needs a predicate and a name that is
// unique (case-insensitively) within the set.
func NewCheckSet(checks ...ValueCheck) (CheckSet, error) {
	seen := make(map[string]struct{}, len(checks))
	for i, c := range checks {
		if c.Predicate == nil {
			return CheckSet{}, fmt.Errorf("value check %d (%q) has no predicate", i, c.Name)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return CheckSet{}, fmt.Errorf("duplicate value check %q", c.Name)
		}
		seen[key] = struct{}{}
	}
	return CheckSet{checks: append([]ValueCheck(nil), checks...)}, nil
}

// MustCheckSet is NewCheckSet for package-level tables
func MustCheckSet(checks ...ValueCheck) CheckSet {
	set, err := NewCheckSet(checks...)
	if err != nil {
		panic(err)
	}
	return set
}

// Checks returns the checks in order
func (s CheckSet) Checks() []ValueCheck {
	return append([]ValueCheck(nil), s.checks...)
}

// Len returns the number of checks
func (s CheckSet) Len() int { return len(s.checks) }

func (s CheckSet) anyWow64() bool {
	for _, c := range s.checks {
		if c.Wow64 {
			return true
		}
	}
	return false
}

// RegistryDetection is a value that matched a predicate
type RegistryDetection struct {
	Key       KeyRef
	ValueName string
	Value     Value
}

// Entry renders the detection as a report entry
func (d RegistryDetection) Entry() types.RegistryEntry {
	return types.RegistryEntry{
		Key:       d.Key.String(),
		ValueName: d.ValueName,
		ValueData: d.Value.Text(),
		ValueType: d.Value.Type.String(),
		View:      d.Key.View.String(),
	}
}

// Checker evaluates value checks against a backend. It keeps no state
// between calls and is safe for concurrent use.
type Checker struct {
	Backend Backend
	// UserFilter restricts user hive expansion
	UserFilter func(sid string) bool
	// KeyFilter, when set, skips keys it rejects (matched on KeyRef.String)
	KeyFilter func(key string) bool
}

// CheckValues evaluates checks against hive\path, optionally expanded to
// every loaded user hive and the WOW64 view. Detections are returned in
// (resolved key, check) order. Missing and unreadable keys are skipped.
func (c Checker) CheckValues(hive Hive, path string, checks CheckSet, alsoCheckWow64, alsoCheckAllUsers bool) []RegistryDetection {
	keys := Resolve(c.Backend, hive, path, ResolveOptions{
		Wow64:      alsoCheckWow64 || checks.anyWow64(),
		AllUsers:   alsoCheckAllUsers,
		UserFilter: c.UserFilter,
	})

	var detections []RegistryDetection
	for _, ref := range keys {
		c.withKey(ref, func(k Key) {
			for _, check := range checks.checks {
				if ref.View == View32 && !alsoCheckWow64 && !check.Wow64 {
					continue
				}
				value, ok := readValue(k, ref, check.Name, check.Default)
				if !ok || !check.Predicate(value) {
					continue
				}
				detections = append(detections, RegistryDetection{Key: ref, ValueName: check.Name, Value: value})
			}
		})
	}
	return detections
}

// CheckKeyValues applies one predicate to every value of hive\path and its
// expansions.
func (c Checker) CheckKeyValues(hive Hive, path string, predicate Predicate, alsoCheckWow64, alsoCheckAllUsers bool) []RegistryDetection {
	keys := Resolve(c.Backend, hive, path, ResolveOptions{
		Wow64:      alsoCheckWow64,
		AllUsers:   alsoCheckAllUsers,
		UserFilter: c.UserFilter,
	})

	var detections []RegistryDetection
	for _, ref := range keys {
		c.withKey(ref, func(k Key) {
			names, err := k.ValueNames()
			if err != nil {
				logger.Debug("Values not readable: %s (%v)", ref, err)
				return
			}
			for _, name := range names {
				value, ok := readValue(k, ref, name, nil)
				if ok && predicate(value) {
					detections = append(detections, RegistryDetection{Key: ref, ValueName: name, Value: value})
				}
			}
		})
	}
	return detections
}

func (c Checker) withKey(ref KeyRef, fn func(Key)) {
	if c.KeyFilter != nil && !c.KeyFilter(ref.String()) {
		return
	}
	k, err := c.Backend.OpenKey(ref.Hive, ref.Path, ref.View)
	if err != nil {
		if !errors.Is(err, ErrNotExist) {
			logger.Debug("Key not accessible: %s (%v)", ref, err)
		}
		return
	}
	defer k.Close()
	fn(k)
}

func readValue(k Key, ref KeyRef, name string, def *Value) (Value, bool) {
	v, err := k.GetValue(name)
	if err == nil {
		return v, true
	}
	if errors.Is(err, ErrNotExist) {
		if def != nil {
			return def.clone(), true
		}
		return Value{}, false
	}
	logger.Debug("Value not readable: %s\\%s (%v)", ref, name, err)
	return Value{}, false
}
