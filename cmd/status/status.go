package status

import (
	"fmt"
	"io"
	"os"

	"github.com/buger/goterm"
	"github.com/spf13/cobra"

	"github.com/sidkik/samar/cmd/util"
	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/status"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `status` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Analyze the current project and show what will be synced/ignored",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	ws, err := util.LoadWorkspace()
	if err != nil {
		return errors.WithContext(err, "load workspace")
	}

	fmt.Fprintln(stdout, goterm.Bold(goterm.Color("Analyzing Project Structure...", goterm.BLUE)))
	report, err := status.Analyze(ws.Root, ws.Rules)
	if err != nil {
		return errors.WithContext(err, "analyze")
	}
	report.Print(stdout)
	return nil
}
