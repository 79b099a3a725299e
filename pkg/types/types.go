// Package types defines the core data structures for ferret-hunt
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Certainty expresses how confident a hunt is that an artifact is malicious
type Certainty int

const (
	CertaintyNone Certainty = iota
	CertaintyLow
	CertaintyModerate
	CertaintyHigh
	CertaintyCertain
)

var certaintyNames = [...]string{"none", "low", "moderate", "high", "certain"}

func (c Certainty) String() string {
	if c < CertaintyNone || c > CertaintyCertain {
		return fmt.Sprintf("certainty(%d)", int(c))
	}
	return certaintyNames[c]
}

// Score returns the certainty as a value in [0, 1]
func (c Certainty) Score() float64 {
	switch {
	case c <= CertaintyNone:
		return 0
	case c >= CertaintyCertain:
		return 1
	default:
		return float64(c) * 0.25
	}
}

// Severity maps the certainty onto the report severity vocabulary
func (c Certainty) Severity() string {
	switch c {
	case CertaintyCertain:
		return SeverityCritical
	case CertaintyHigh:
		return SeverityHigh
	case CertaintyModerate:
		return SeverityMedium
	case CertaintyLow:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

func (c Certainty) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Certainty) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCertainty(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCertainty parses a certainty name such as "moderate"
func ParseCertainty(s string) (Certainty, error) {
	for i, name := range certaintyNames {
		if strings.EqualFold(s, name) {
			return Certainty(i), nil
		}
	}
	return CertaintyNone, fmt.Errorf("unknown certainty %q", s)
}

// Severity constants
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "informational"
)

// HostInfo represents the host system information
type HostInfo struct {
	Hostname  string `json:"hostname"`
	OSVersion string `json:"os_version"`
	Arch      string `json:"arch"`
}

// ScanSummary represents the summary of a scan
type ScanSummary struct {
	HuntsRun   int            `json:"hunts_run"`
	Detections DetectionCount `json:"detections"`
}

// DetectionCount represents detection counts by severity
type DetectionCount struct {
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	Informational int `json:"informational"`
}

// Add counts one detection of the given certainty
func (c *DetectionCount) Add(certainty Certainty) {
	switch certainty.Severity() {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	default:
		c.Informational++
	}
}

// Total returns the number of counted detections
func (c DetectionCount) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Informational
}

// HuntReport records how a single hunt went during a scan
type HuntReport struct {
	Name       string `json:"name"`
	Detections int    `json:"detections"`
	DurationMs int64  `json:"duration_ms"`
}

// ScanResult represents the complete scan result
type ScanResult struct {
	AgentVersion   string       `json:"agent_version"`
	ScanID         string       `json:"scan_id"`
	Scope          string       `json:"scope"`
	ScanTime       time.Time    `json:"scan_time"`
	ScanDurationMs int64        `json:"scan_duration_ms"`
	Host           HostInfo     `json:"host"`
	Summary        ScanSummary  `json:"summary"`
	Hunts          []HuntReport `json:"hunts"`
	Detections     []Detection  `json:"detections"`
}
