package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/samar/pkg/errors"
)

// Mocked out for unit testing.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// HandleFatalError prints the error and exits. Friendly errors are printed
// as-is, and all other errors are printed with their full context.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(stderr, errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic logs panics before exiting so that they show up in the log
// output rather than being lost with the terminal.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		fmt.Fprintf(stderr, "Samar crashed unexpectedly: %v\n", r)
		exit(1)
	}
}
