package ui

import (
	"fmt"
	"io"
)

// ASCIILogo is printed by the console front-end on start
const ASCIILogo = `
    ╔══════════════════════════════════════════════════════════╗
    ║ █▀█ █▀█ █▀█ █▀▀ █ █   █▀▀   █▀▀ █▀█ ▄▀█ █▄▄              ║
    ║ █▀▀ █▀▄ █▄█ █▀  █ █▄▄ ██▄   █▄█ █▀▄ █▀█ █▄█              ║
    ║      instagram · threads · facebook media archiver       ║
    ╚══════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var colorEnabled = true

// SetColor turns ANSI colors on or off, e.g. when stdout is not a terminal
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo writes the colored logo to w
func PrintLogo(w io.Writer) {
	fmt.Fprint(w, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(w io.Writer, msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(w, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, Yellow(msg))
}
