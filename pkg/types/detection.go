package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DetectionKind names the evidence variant carried by a detection
type DetectionKind string

const (
	DetectionKindRegistry DetectionKind = "registry"
	DetectionKindFile     DetectionKind = "file"
)

// DetectionData is the evidence payload of a detection. The set of
// implementations is closed: RegistryDetectionData and FileDetectionData.
type DetectionData interface {
	Kind() DetectionKind
	// Identifier is a stable rendering of the artifact, e.g. a key\value or file path
	Identifier() string
	detectionData()
}

// RegistryEntry represents a registry key/value
type RegistryEntry struct {
	Key       string `json:"key"`
	ValueName string `json:"value_name"`
	ValueData string `json:"value_data"`
	ValueType string `json:"value_type"`
	View      string `json:"view,omitempty"` // "wow64_32" for the 32-bit view
}

// RegistryReferenceType classifies what the data of a registry value denotes
type RegistryReferenceType string

const (
	ReferenceGeneral RegistryReferenceType = "general"
	ReferenceFile    RegistryReferenceType = "file_reference"
	ReferenceFolder  RegistryReferenceType = "folder_reference"
	ReferenceCommand RegistryReferenceType = "command_reference"
	ReferencePipe    RegistryReferenceType = "pipe_reference"
	ReferenceUser    RegistryReferenceType = "user_reference"
)

// RegistryDetectionData is evidence found in a registry value
type RegistryDetectionData struct {
	Entry         RegistryEntry         `json:"entry"`
	Reference     RegistryReferenceType `json:"reference"`
	ExtractedPath string                `json:"extracted_path,omitempty"`
}

func (RegistryDetectionData) Kind() DetectionKind { return DetectionKindRegistry }
func (RegistryDetectionData) detectionData()      {}

func (d RegistryDetectionData) Identifier() string {
	return d.Entry.Key + `\` + d.Entry.ValueName
}

// FileDetectionData is evidence found on the filesystem
type FileDetectionData struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	IsHidden   bool      `json:"is_hidden"`
}

func (FileDetectionData) Kind() DetectionKind { return DetectionKindFile }
func (FileDetectionData) detectionData()      {}

func (d FileDetectionData) Identifier() string { return d.Path }

// DetectionContext attributes a detection to the hunts and techniques that produced it
type DetectionContext struct {
	Hunts         []string   `json:"hunts"`
	Techniques    []string   `json:"techniques,omitempty"` // root technique first
	FirstEvidence *time.Time `json:"first_evidence,omitempty"`
	Note          string     `json:"note,omitempty"`
}

// HasHunt reports whether the context already names the hunt
func (c DetectionContext) HasHunt(name string) bool {
	for _, h := range c.Hunts {
		if h == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with c
func (c DetectionContext) Clone() DetectionContext {
	out := c
	out.Hunts = append([]string(nil), c.Hunts...)
	out.Techniques = append([]string(nil), c.Techniques...)
	if c.FirstEvidence != nil {
		t := *c.FirstEvidence
		out.FirstEvidence = &t
	}
	return out
}

// Detection represents a single graded piece of evidence
type Detection struct {
	ID        string           `json:"id"`
	Certainty Certainty        `json:"certainty"`
	Data      DetectionData    `json:"-"`
	Context   DetectionContext `json:"context"`
	Timestamp time.Time        `json:"timestamp"`
}

type detectionJSON struct {
	ID        string           `json:"id"`
	Certainty Certainty        `json:"certainty"`
	Severity  string           `json:"severity"`
	Kind      DetectionKind    `json:"kind"`
	Data      json.RawMessage  `json:"data"`
	Context   DetectionContext `json:"context"`
	Timestamp time.Time        `json:"timestamp"`
}

func (d Detection) MarshalJSON() ([]byte, error) {
	if d.Data == nil {
		return nil, fmt.Errorf("detection %s has no data", d.ID)
	}
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(detectionJSON{
		ID:        d.ID,
		Certainty: d.Certainty,
		Severity:  d.Certainty.Severity(),
		Kind:      d.Data.Kind(),
		Data:      raw,
		Context:   d.Context,
		Timestamp: d.Timestamp,
	})
}

func (d *Detection) UnmarshalJSON(b []byte) error {
	var aux detectionJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	switch aux.Kind {
	case DetectionKindRegistry:
		var data RegistryDetectionData
		if err := json.Unmarshal(aux.Data, &data); err != nil {
			return fmt.Errorf("decoding registry detection: %w", err)
		}
		d.Data = data
	case DetectionKindFile:
		var data FileDetectionData
		if err := json.Unmarshal(aux.Data, &data); err != nil {
			return fmt.Errorf("decoding file detection: %w", err)
		}
		d.Data = data
	default:
		return fmt.Errorf("unknown detection kind %q", aux.Kind)
	}

	d.ID = aux.ID
	d.Certainty = aux.Certainty
	d.Context = aux.Context
	d.Timestamp = aux.Timestamp
	return nil
}
