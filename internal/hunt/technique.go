package hunt

import (
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// Technique is a MITRE ATT&CK technique or sub-technique
type Technique struct {
	ID     string
	Name   string
	Parent *Technique
}

// String renders "T1037.001 - Logon Script (Windows)"
func (t Technique) String() string {
	return t.ID + " - " + t.Name
}

// Lineage returns the technique and its ancestors, root first
func (t Technique) Lineage() []Technique {
	var chain []Technique
	for cur := &t; cur != nil; cur = cur.Parent {
		chain = append([]Technique{*cur}, chain...)
	}
	return chain
}

// Context returns a detection context attributing evidence to t and its
// parent techniques, with an optional free-text note.
func (t Technique) Context(note string) types.DetectionContext {
	lineage := t.Lineage()
	names := make([]string, len(lineage))
	for i, l := range lineage {
		names[i] = l.String()
	}
	return types.DetectionContext{Techniques: names, Note: note}
}

var (
	T1037 = Technique{ID: "T1037", Name: "Boot or Logon Initialization Scripts"}

	T1037_001 = Technique{ID: "T1037.001", Name: "Logon Script (Windows)", Parent: &T1037}

	T1547 = Technique{ID: "T1547", Name: "Boot or Logon Autostart Execution"}

	T1547_001 = Technique{ID: "T1547.001", Name: "Registry Run Keys / Startup Folder", Parent: &T1547}
)
