package shared

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Package-level color variables
var (
	ColorInfo    = color.New(color.FgCyan)
	ColorSuccess = color.New(color.FgGreen)
	ColorWarning = color.New(color.FgYellow)
	ColorError   = color.New(color.FgRed)
	ColorDebug   = color.New(color.FgHiBlack)
	ColorHeader  = color.New(color.FgMagenta, color.Bold)
)

// TierColor returns the color used to print a tier name.
func TierColor(tier string) *color.Color {
	switch tier {
	case "accept":
		return ColorSuccess
	case "queue":
		return ColorWarning
	default:
		return ColorError
	}
}

// InitializeColors initializes color output based on TTY detection
func InitializeColors() {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
}
