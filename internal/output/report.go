package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

const rule = "================================================================================"
const thinRule = "--------------------------------------------------------------------------------"

// SaveDetailedReport saves a human-readable text report next to the JSON
// results and returns its path.
func (h *Handler) SaveDetailedReport(result *types.ScanResult, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	fullPath := filepath.Join(outputDir, fmt.Sprintf("scan_report_%s.txt", time.Now().Format("2006-01-02_150405")))

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	WriteReport(file, result)

	if h.human() {
		fmt.Fprintf(h.w, "Detailed report: %s\n", fullPath)
	}
	return fullPath, nil
}

// WriteReport writes the text report for result to w
func WriteReport(w io.Writer, result *types.ScanResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "                       FERRET HUNT - PERSISTENCE HUNT REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scan ID:       %s\n", result.ScanID)
	fmt.Fprintf(w, "Agent Version: %s\n", result.AgentVersion)
	fmt.Fprintf(w, "Scope:         %s\n", result.Scope)
	fmt.Fprintf(w, "Scan Time:     %s\n", result.ScanTime.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(w, "Duration:      %d ms\n", result.ScanDurationMs)
	fmt.Fprintln(w)

	fmt.Fprintln(w, thinRule)
	fmt.Fprintln(w, "HOST INFORMATION")
	fmt.Fprintln(w, thinRule)
	fmt.Fprintf(w, "Hostname:      %s\n", result.Host.Hostname)
	fmt.Fprintf(w, "OS Version:    %s\n", result.Host.OSVersion)
	fmt.Fprintf(w, "Architecture:  %s\n", result.Host.Arch)
	fmt.Fprintln(w)

	fmt.Fprintln(w, thinRule)
	fmt.Fprintln(w, "HUNTS")
	fmt.Fprintln(w, thinRule)
	for _, hr := range result.Hunts {
		fmt.Fprintf(w, "  %-10s %4d detections  %6d ms\n", hr.Name, hr.Detections, hr.DurationMs)
	}
	fmt.Fprintln(w)

	counts := result.Summary.Detections
	fmt.Fprintln(w, "Detection Counts:")
	fmt.Fprintf(w, "  [CRITICAL] %d\n", counts.Critical)
	fmt.Fprintf(w, "  [HIGH]     %d\n", counts.High)
	fmt.Fprintf(w, "  [MEDIUM]   %d\n", counts.Medium)
	fmt.Fprintf(w, "  [LOW]      %d\n", counts.Low)
	fmt.Fprintf(w, "  [INFO]     %d\n", counts.Informational)
	fmt.Fprintf(w, "  TOTAL:     %d\n", counts.Total())
	fmt.Fprintln(w)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "                              DETAILED DETECTIONS")
	fmt.Fprintln(w, rule)

	if len(result.Detections) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No detections found.")
		return
	}

	for c := types.CertaintyCertain; c >= types.CertaintyNone; c-- {
		group := filterByCertainty(result.Detections, c)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n=== %s CERTAINTY ===\n", strings.ToUpper(c.String()))
		writeDetections(w, group)
	}
}

func filterByCertainty(detections []types.Detection, c types.Certainty) []types.Detection {
	var out []types.Detection
	for _, d := range detections {
		if d.Certainty == c {
			out = append(out, d)
		}
	}
	return out
}

func writeDetections(w io.Writer, detections []types.Detection) {
	for i, d := range detections {
		fmt.Fprintf(w, "\n[%d] %s\n", i+1, d.Data.Identifier())
		fmt.Fprintf(w, "    ID:         %s\n", d.ID)
		fmt.Fprintf(w, "    Kind:       %s\n", d.Data.Kind())
		fmt.Fprintf(w, "    Severity:   %s\n", d.Certainty.Severity())
		fmt.Fprintf(w, "    Timestamp:  %s\n", d.Timestamp.Format("2006-01-02 15:04:05"))
		for _, line := range Describe(d.Data) {
			fmt.Fprintf(w, "    %s\n", line)
		}
		if len(d.Context.Techniques) > 0 {
			fmt.Fprintln(w, "    MITRE ATT&CK:")
			for _, t := range d.Context.Techniques {
				fmt.Fprintf(w, "      - %s\n", t)
			}
		}
		fmt.Fprintf(w, "    Hunts:      %s\n", strings.Join(d.Context.Hunts, ", "))
		if d.Context.FirstEvidence != nil {
			fmt.Fprintf(w, "    First Seen: %s\n", d.Context.FirstEvidence.Format("2006-01-02 15:04:05"))
		}
		if d.Context.Note != "" {
			fmt.Fprintf(w, "    Note:       %s\n", d.Context.Note)
		}
		fmt.Fprintln(w, "    ------------------------------------------------------------------------")
	}
}
