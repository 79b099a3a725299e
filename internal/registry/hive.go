// Package registry evaluates declarative value checks against the Windows
// registry, expanding keys across loaded user hives and the WOW64 view.
package registry

import (
	"fmt"
	"strings"
)

// Hive is a predefined registry root
type Hive int

const (
	ClassesRoot Hive = iota + 1
	CurrentUser
	LocalMachine
	Users
	CurrentConfig
)

var hiveNames = map[Hive][2]string{
	ClassesRoot:   {"HKCR", "HKEY_CLASSES_ROOT"},
	CurrentUser:   {"HKCU", "HKEY_CURRENT_USER"},
	LocalMachine:  {"HKLM", "HKEY_LOCAL_MACHINE"},
	Users:         {"HKU", "HKEY_USERS"},
	CurrentConfig: {"HKCC", "HKEY_CURRENT_CONFIG"},
}

// String returns the short hive name, e.g. HKLM
func (h Hive) String() string {
	if n, ok := hiveNames[h]; ok {
		return n[0]
	}
	return fmt.Sprintf("hive(%d)", int(h))
}

// Valid reports whether h is one of the predefined hives
func (h Hive) Valid() bool {
	_, ok := hiveNames[h]
	return ok
}

// ParseHive accepts short (HKLM) and long (HKEY_LOCAL_MACHINE) names
func ParseHive(s string) (Hive, error) {
	for h, n := range hiveNames {
		if strings.EqualFold(s, n[0]) || strings.EqualFold(s, n[1]) {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown hive %q", s)
}

// View selects between the native and the 32-bit (WOW64) registry view
type View int

const (
	ViewDefault View = iota
	View32
)

func (v View) String() string {
	if v == View32 {
		return "wow64_32"
	}
	return ""
}

// KeyRef identifies a registry key without holding it open
type KeyRef struct {
	Hive Hive
	Path string
	View View
}

// String renders the key as HIVE\path
func (k KeyRef) String() string {
	if k.Path == "" {
		return k.Hive.String()
	}
	return k.Hive.String() + `\` + k.Path
}

// Label is String qualified by the view, e.g. HKLM\SOFTWARE\X [wow64_32]
func (k KeyRef) Label() string {
	if k.View == View32 {
		return k.String() + " [" + View32.String() + "]"
	}
	return k.String()
}

// ParseKey splits "HKCU\Environment" into a KeyRef in the default view
func ParseKey(s string) (KeyRef, error) {
	hive, path, _ := strings.Cut(s, `\`)
	h, err := ParseHive(hive)
	if err != nil {
		return KeyRef{}, err
	}
	return KeyRef{Hive: h, Path: cleanPath(path)}, nil
}

// ValidateKey rejects keys no backend could ever open. Hunts call it when
// they are constructed.
func ValidateKey(hive Hive, path string) error {
	if !hive.Valid() {
		return fmt.Errorf("invalid registry hive %d for %q", int(hive), path)
	}
	if strings.HasPrefix(path, `\`) || strings.HasSuffix(path, `\`) || strings.Contains(path, `\\`) {
		return fmt.Errorf("malformed registry path %q", path)
	}
	return nil
}

func cleanPath(p string) string {
	return strings.Trim(p, `\`)
}

func joinPath(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p = cleanPath(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, `\`)
}
