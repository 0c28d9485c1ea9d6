package prune

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/samar/cmd/util"
	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/mirror"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `prune` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete shadow workspaces left behind by Samar processes that crashed",
		Long: "Delete the shadow workspaces whose owning `samar watch` or `samar mcp`\n" +
			"process is no longer running. Shadow workspaces that are in use are\n" +
			"left alone.",
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

	removed, err := mirror.PruneStale(ws.MirrorParent())
	if err != nil {
		return errors.WithContext(err, "prune")
	}

	for _, path := range removed {
		fmt.Fprintf(stdout, "Removed %s\n", path)
	}
	fmt.Fprintf(stdout, "Pruned %d stale shadow workspace(s).\n", len(removed))
	return nil
}
