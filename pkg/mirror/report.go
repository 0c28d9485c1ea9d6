package mirror

import (
	"fmt"
	"io"

	"github.com/buger/goterm"
	log "github.com/sirupsen/logrus"
)

// Action is what the builder decided to do with a workspace entry.
type Action int

const (
	// ActionLink means a heavy directory was linked into the mirror.
	ActionLink Action = iota
	// ActionIgnore means the entry matched an exclusion rule.
	ActionIgnore
	// ActionDir means a directory was created and recursed into.
	ActionDir
	// ActionFile means a file was copied.
	ActionFile
	// ActionSymlink means a symlink was recreated with the same target.
	ActionSymlink
)

func (a Action) String() string {
	switch a {
	case ActionLink:
		return "LINK"
	case ActionIgnore:
		return "IGNORED"
	case ActionDir:
		return "DIR"
	case ActionFile:
		return "FILE"
	case ActionSymlink:
		return "SYMLINK"
	default:
		return "UNKNOWN"
	}
}

// Decision describes how a single workspace entry was mirrored.
type Decision struct {
	Action Action

	// Rel is the path relative to the workspace root.
	Rel string

	Source string
	Mirror string
}

// Reporter receives every decision made while materializing the mirror.
type Reporter interface {
	Report(Decision)
}

// ReporterFunc adapts a function into a Reporter.
type ReporterFunc func(Decision)

// Report calls f(d).
func (f ReporterFunc) Report(d Decision) {
	f(d)
}

type logReporter struct{}

func (logReporter) Report(d Decision) {
	log.WithField("path", d.Rel).Debugf("Mirror: %s", d.Action)
}

// TerminalReporter prints each decision as a colored line, for dry runs.
func TerminalReporter(out io.Writer) Reporter {
	return ReporterFunc(func(d Decision) {
		var line string
		switch d.Action {
		case ActionLink:
			line = goterm.Color(fmt.Sprintf("  [LINK]    %s -> (Symlink)", d.Rel), goterm.YELLOW)
		case ActionIgnore:
			line = goterm.Color(fmt.Sprintf("  [IGNORED] %s", d.Rel), goterm.RED)
		case ActionDir:
			line = goterm.Color(fmt.Sprintf("  [DIR]     %s", d.Rel), goterm.BLUE)
		case ActionSymlink:
			line = goterm.Color(fmt.Sprintf("  [SYMLINK] %s", d.Rel), goterm.MAGENTA)
		default:
			line = goterm.Color(fmt.Sprintf("  [FILE]    %s", d.Rel), goterm.CYAN)
		}
		fmt.Fprintln(out, line)
	})
}
