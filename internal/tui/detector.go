package tui

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents the output mode.
type OutputMode int

const (
	// ModeTUI uses the interactive progress view.
	ModeTUI OutputMode = iota
	// ModePlain prints one line per event.
	ModePlain
	// ModeJSON prints one JSON object per event.
	ModeJSON
	// ModeQuiet prints only the result.
	ModeQuiet
)

func (m OutputMode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	case ModeQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseOutputMode parses a mode name. Unknown names select auto detection.
func ParseOutputMode(s string) (OutputMode, bool) {
	switch s {
	case "tui":
		return ModeTUI, true
	case "plain":
		return ModePlain, true
	case "json":
		return ModeJSON, true
	case "quiet":
		return ModeQuiet, true
	}
	return ModeTUI, false
}

// Detector determines the appropriate output mode.
type Detector struct {
	forced *OutputMode
	isTTY  func() bool
	getenv func(string) string
}

// NewDetector creates a detector for stdout.
func NewDetector() *Detector {
	return &Detector{
		isTTY:  func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
		getenv: os.Getenv,
	}
}

// ForceMode forces a specific output mode.
func (d *Detector) ForceMode(mode OutputMode) *Detector {
	d.forced = &mode
	return d
}

// Detect determines the output mode.
func (d *Detector) Detect() OutputMode {
	if d.forced != nil {
		return *d.forced
	}
	if m, ok := ParseOutputMode(d.getenv("VISUALIX_OUTPUT")); ok {
		return m
	}
	if d.getenv("CI") != "" || d.getenv("TERM") == "dumb" {
		return ModePlain
	}
	if !d.isTTY() {
		return ModePlain
	}
	return ModeTUI
}
