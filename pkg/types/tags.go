package types

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a configuration domain a hunt inspects
type Category int

const (
	CategoryConfigurations Category = iota
	CategoryFiles
	CategoryProcesses
	CategoryNetwork
	CategoryServices
)

var categoryNames = map[Category]string{
	CategoryConfigurations: "Configurations",
	CategoryFiles:          "Files",
	CategoryProcesses:      "Processes",
	CategoryNetwork:        "Network",
	CategoryServices:       "Services",
}

func (c Category) String() string { return enumName(categoryNames, c) }

// DataSource is a kind of host state a hunt reads
type DataSource int

const (
	DataSourceRegistry DataSource = iota
	DataSourceFileSystem
	DataSourceProcesses
	DataSourceNetwork
	DataSourceEventLogs
)

var dataSourceNames = map[DataSource]string{
	DataSourceRegistry:   "Registry",
	DataSourceFileSystem: "FileSystem",
	DataSourceProcesses:  "Processes",
	DataSourceNetwork:    "Network",
	DataSourceEventLogs:  "EventLogs",
}

func (d DataSource) String() string { return enumName(dataSourceNames, d) }

// Tactic is a MITRE ATT&CK enterprise tactic
type Tactic int

const (
	TacticInitialAccess Tactic = iota
	TacticExecution
	TacticPersistence
	TacticPrivilegeEscalation
	TacticDefenseEvasion
	TacticCredentialAccess
	TacticDiscovery
	TacticLateralMovement
	TacticCollection
	TacticCommandAndControl
	TacticExfiltration
	TacticImpact
)

var tacticNames = map[Tactic]string{
	TacticInitialAccess:       "Initial Access",
	TacticExecution:           "Execution",
	TacticPersistence:         "Persistence",
	TacticPrivilegeEscalation: "Privilege Escalation",
	TacticDefenseEvasion:      "Defense Evasion",
	TacticCredentialAccess:    "Credential Access",
	TacticDiscovery:           "Discovery",
	TacticLateralMovement:     "Lateral Movement",
	TacticCollection:          "Collection",
	TacticCommandAndControl:   "Command and Control",
	TacticExfiltration:        "Exfiltration",
	TacticImpact:              "Impact",
}

func (t Tactic) String() string { return enumName(tacticNames, t) }

// ParseTactic accepts "Privilege Escalation", "privilege_escalation" or "PrivilegeEscalation"
func ParseTactic(s string) (Tactic, error) {
	return parseEnum(tacticNames, s, "tactic")
}

// ParseDataSource accepts names such as "Registry" or "filesystem"
func ParseDataSource(s string) (DataSource, error) {
	return parseEnum(dataSourceNames, s, "data source")
}

// ParseCategory accepts names such as "Configurations" or "files"
func ParseCategory(s string) (Category, error) {
	return parseEnum(categoryNames, s, "category")
}

// Tag is satisfied by the enumerations above
type Tag interface {
	~int
	fmt.Stringer
}

// Set is an unordered set of tags
type Set[T Tag] map[T]struct{}

// NewSet builds a set from the given tags
func NewSet[T Tag](tags ...T) Set[T] {
	s := make(Set[T], len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is in the set
func (s Set[T]) Has(t T) bool {
	_, ok := s[t]
	return ok
}

// HasAny reports whether the sets intersect
func (s Set[T]) HasAny(other Set[T]) bool {
	for t := range other {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Slice returns the tags in ascending order
func (s Set[T]) Slice() []T {
	out := make([]T, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the tag names in ascending tag order
func (s Set[T]) Strings() []string {
	tags := s.Slice()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

func (s Set[T]) String() string {
	return strings.Join(s.Strings(), ", ")
}

func enumName[T ~int](names map[T]string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(v))
}

func parseEnum[T ~int](names map[T]string, s, what string) (T, error) {
	want := normalizeTag(s)
	for v, name := range names {
		if normalizeTag(name) == want {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}

func normalizeTag(s string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(s))
}
