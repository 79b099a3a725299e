// Package output handles CLI output formatting
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// Options for output handler
type Options struct {
	Quiet   bool
	Verbose bool // also list None-certainty detections
	JSON    bool
	Writer  io.Writer // defaults to stdout
}

// Handler manages CLI output
type Handler struct {
	opts Options
	w    io.Writer
}

// New creates a new output handler
func New(opts Options) *Handler {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	return &Handler{opts: opts, w: w}
}

func (h *Handler) human() bool { return !h.opts.Quiet && !h.opts.JSON }

// PrintHeader prints the scan header
func (h *Handler) PrintHeader(version, scopeName string) {
	if !h.human() {
		return
	}

	hostname, _ := os.Hostname()
	body := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Ferret Hunt v"+version+" - Persistence Hunt"),
		LabelStyle.Render("Host")+ValueStyle.Render(hostname),
		LabelStyle.Render("Scope")+ValueStyle.Render(scopeName),
		LabelStyle.Render("Time")+ValueStyle.Render(time.Now().UTC().Format("2006-01-02 15:04:05 UTC")),
	)
	fmt.Fprintln(h.w)
	fmt.Fprintln(h.w, FrameStyle.Render(body))
	fmt.Fprintln(h.w)
}

// PrintStep prints a scan step
func (h *Handler) PrintStep(current, total int, message string) {
	if !h.human() {
		return
	}
	fmt.Fprintf(h.w, "[%d/%d] %s\n", current, total, message)
}

// PrintDetail prints a detail line
func (h *Handler) PrintDetail(format string, args ...interface{}) {
	if !h.human() {
		return
	}
	fmt.Fprintf(h.w, "      └─ "+format+"\n", args...)
}

// PrintNotice prints a highlighted status line
func (h *Handler) PrintNotice(format string, args ...interface{}) {
	if !h.human() {
		return
	}
	fmt.Fprintln(h.w, TitleStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func (h *Handler) PrintError(format string, args ...interface{}) {
	if h.opts.JSON {
		return
	}
	fmt.Fprintln(h.w, AlertStyle.Render("ERROR: ")+fmt.Sprintf(format, args...))
}

// PrintHuntResult prints one hunt's outcome with alignment
func (h *Handler) PrintHuntResult(r types.HuntReport) {
	if !h.human() {
		return
	}
	dots := 45 - len(r.Name)
	if dots < 3 {
		dots = 3
	}
	fmt.Fprintf(h.w, "      ├─ %s%s %d found (%dms)\n", r.Name, strings.Repeat(".", dots), r.Detections, r.DurationMs)
}

// PrintSummary prints the scan summary
func (h *Handler) PrintSummary(result *types.ScanResult) {
	if h.opts.JSON {
		return
	}

	c := result.Summary.Detections
	row := func(style lipgloss.Style, label string, n int) string {
		return style.Render(fmt.Sprintf("%-13s", label)) + fmt.Sprintf(" %3d", n)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(fmt.Sprintf("Scan Complete! (%.1fs total, %d hunts)",
			float64(result.ScanDurationMs)/1000, result.Summary.HuntsRun)),
		"",
		row(CertainStyle, "Critical", c.Critical),
		row(HighStyle, "High", c.High),
		row(ModerateStyle, "Medium", c.Medium),
		row(LowStyle, "Low", c.Low),
		row(NoneStyle, "Informational", c.Informational),
		"",
		fmt.Sprintf("Total: %d detections", c.Total()),
	)
	fmt.Fprintln(h.w)
	fmt.Fprintln(h.w, FrameStyle.Render(body))
	fmt.Fprintln(h.w)
}

// PrintDetections lists detections, most certain first. None-certainty
// detections are only listed in verbose mode.
func (h *Handler) PrintDetections(detections []types.Detection) {
	if h.opts.JSON {
		return
	}

	for c := types.CertaintyCertain; c >= types.CertaintyNone; c-- {
		if c == types.CertaintyNone && !h.opts.Verbose {
			continue
		}
		for _, d := range detections {
			if d.Certainty == c {
				h.PrintDetection(d)
			}
		}
	}
}

// PrintDetection prints a single detection
func (h *Handler) PrintDetection(d types.Detection) {
	if h.opts.JSON {
		fmt.Fprintln(h.w, mustJSON(d))
		return
	}

	fmt.Fprintf(h.w, "%s %s\n", CertaintyStyle(d.Certainty).Render(strings.ToUpper(d.Certainty.String())), Truncate(d.Data.Identifier(), 90))
	for _, line := range Describe(d.Data) {
		fmt.Fprintln(h.w, HintStyle.Render("    "+line))
	}
	if len(d.Context.Techniques) > 0 {
		fmt.Fprintln(h.w, HintStyle.Render("    Technique: "+d.Context.Techniques[len(d.Context.Techniques)-1]))
	}
	fmt.Fprintln(h.w, HintStyle.Render("    Hunts: "+strings.Join(d.Context.Hunts, ", ")))
}

// Describe renders the evidence of a detection as report lines
func Describe(data types.DetectionData) []string {
	switch d := data.(type) {
	case types.RegistryDetectionData:
		lines := []string{
			"Key:   " + d.Entry.Key,
			fmt.Sprintf("Value: %s = %q (%s)", displayName(d.Entry.ValueName), d.Entry.ValueData, d.Entry.ValueType),
		}
		if d.Entry.View != "" {
			lines = append(lines, "View:  "+d.Entry.View)
		}
		if d.ExtractedPath != "" {
			lines = append(lines, fmt.Sprintf("Refers to %s: %s", strings.TrimSuffix(string(d.Reference), "_reference"), d.ExtractedPath))
		}
		return lines
	case types.FileDetectionData:
		lines := []string{
			"File:     " + d.Path,
			fmt.Sprintf("Size:     %d bytes", d.Size),
			"Modified: " + d.ModifiedAt.Format("2006-01-02 15:04:05"),
		}
		if d.IsHidden {
			lines = append(lines, "Hidden:   yes")
		}
		return lines
	default:
		panic(fmt.Sprintf("output: unhandled detection data %T", data))
	}
}

func displayName(name string) string {
	if name == "" {
		return "(Default)"
	}
	return name
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

// WriteJSON writes the scan result as indented JSON
func WriteJSON(w io.Writer, result *types.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// SaveResults saves scan results to path, or to a timestamped file in the
// working directory when path is empty. It returns the file written.
func (h *Handler) SaveResults(result *types.ScanResult, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("scan_%s.json", time.Now().Format("2006-01-02_150405"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, result); err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	if h.human() {
		fmt.Fprintf(h.w, "Full results: %s\n", path)
	}
	return path, nil
}

// LoadResults reads a scan result written by SaveResults
func LoadResults(path string) (*types.ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result types.ScanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &result, nil
}
