// Package status summarizes how a workspace will be mirrored, without
// creating a mirror.
package status

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/buger/goterm"
	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/rules"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

const separator = "----------------------------------------"

// Report contains the counts from analyzing a workspace.
type Report struct {
	Root string

	// SyncedFiles is the number of files that will be copied into the
	// mirror, and synced back from it.
	SyncedFiles int

	// IgnoredEntries is the number of top-most excluded entries. The
	// contents of an excluded directory aren't counted separately.
	IgnoredEntries int

	// HeavyDirs are the paths of the directories that will be linked,
	// relative to the root.
	HeavyDirs []string
}

// Analyze walks the workspace at `root` the same way the mirror builder
// does. Heavy directories and excluded entries aren't descended into.
func Analyze(root string, evaluator *rules.Evaluator) (Report, error) {
	report := Report{Root: root}
	if err := analyzeDir(root, root, evaluator, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

func analyzeDir(root, dir string, evaluator *rules.Evaluator, report *Report) error {
	items, err := afero.ReadDir(fs, dir)
	if err != nil {
		return errors.WithContext(err, "read dir")
	}

	for _, item := range items {
		path := filepath.Join(dir, item.Name())
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.WithContext(err, "get relative path")
		}

		switch {
		case item.IsDir() && evaluator.IsHeavy(item.Name()):
			report.HeavyDirs = append(report.HeavyDirs, rel)
		case evaluator.Match(path, item.IsDir()):
			report.IgnoredEntries++
		case item.IsDir():
			if err := analyzeDir(root, path, evaluator, report); err != nil {
				return err
			}
		default:
			report.SyncedFiles++
		}
	}
	return nil
}

// Print writes a human readable summary of the report to `out`.
func (r Report) Print(out io.Writer) {
	heavy := "None"
	if len(r.HeavyDirs) != 0 {
		heavy = strings.Join(r.HeavyDirs, ", ")
	}

	fmt.Fprintln(out, goterm.Color(separator, goterm.BLACK))
	fmt.Fprintf(out, "Project Root:  %s\n", r.Root)
	fmt.Fprintln(out, goterm.Color(separator, goterm.BLACK))
	fmt.Fprintln(out, goterm.Color(fmt.Sprintf("Synced Files:  %d", r.SyncedFiles), goterm.GREEN))
	fmt.Fprintln(out, goterm.Color(fmt.Sprintf("Ignored Files: %d", r.IgnoredEntries), goterm.RED))
	fmt.Fprintln(out, goterm.Color(fmt.Sprintf("Heavy Links:   %d (%s)", len(r.HeavyDirs), heavy), goterm.YELLOW))
	fmt.Fprintln(out, goterm.Color(separator, goterm.BLACK))

	if r.IgnoredEntries == 0 {
		fmt.Fprintln(out, goterm.Color("Warning: No files are being ignored. "+
			"Ensure your .gitignore or .samarignore is set up!", goterm.YELLOW))
	} else {
		fmt.Fprintln(out, goterm.Color("Configuration looks healthy.", goterm.CYAN))
	}
}
