package cheribuild

import (
	"fmt"
	"os"

	"github.com/gookit/color"
)

// Global variables
var (
	Debug      bool
	Verbose    bool
	ConfigFile = "/etc/cheribuild.conf"
	version    = "dev"     // default version; overridden at build time
	buildDate  = "unknown" // overridden at build time
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)

// statusUpdate prints a progress line for the current build step.
func statusUpdate(args ...interface{}) {
	colArrow.Print("-> ")
	colSuccess.Println(args...)
}

// warningMessage logs an advisory warning; execution continues.
func warningMessage(args ...interface{}) {
	colArrow.Print("-> ")
	colWarn.Println(args...)
}

// fatalError prints a diagnostic and terminates the process with a non-zero
// status. Used for configuration and graph-integrity errors that indicate an
// authoring mistake, never a transient condition.
func fatalError(args ...interface{}) {
	colArrow.Print("-> ")
	colError.Println(args...)
	os.Exit(1)
}

func debugf(format string, args ...interface{}) {
	if Debug {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
