package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ui prints progress and outcome lines for the generate command.
type ui struct {
	out io.Writer
}

func (u ui) Step(format string, args ...interface{}) {
	color.New(color.FgBlue).Fprintf(u.out, "→ %s\n", fmt.Sprintf(format, args...))
}

func (u ui) Success(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(u.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

func (u ui) Warning(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(u.out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func (u ui) Error(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(u.out, "✗ %s\n", fmt.Sprintf(format, args...))
}
