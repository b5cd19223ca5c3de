package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/kalambet/chatcal/internal/event"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	stepColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
	userColor    = color.New(color.FgCyan, color.Bold)
	botColor     = color.New(color.FgHiWhite)
	addedColor   = color.New(color.FgGreen, color.Bold)
)

// colorize renders text with c unless color output is disabled.
func colorize(c *color.Color, text string) string {
	if noColor || color.NoColor {
		return text
	}
	return c.Sprint(text)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(successColor, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(errorColor, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(warningColor, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(boldColor, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(stepColor, "→ "+msg))
}

func priorityColor(p event.Priority) *color.Color {
	switch event.ParsePriority(string(p)) {
	case event.PriorityHigh:
		return errorColor
	case event.PriorityMedium:
		return warningColor
	default:
		return successColor
	}
}
