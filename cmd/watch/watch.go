package watch

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/buger/goterm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/samar/cmd/util"
	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/mirror"
	shadowSync "github.com/sidkik/samar/pkg/sync"
)

const separator = "----------------------------------------"

// Mocked out for unit testing.
var (
	stdout io.Writer = os.Stdout

	waitForShutdown = func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		signal.Stop(sigs)
	}
)

// New creates a new `watch` command.
func New() *cobra.Command {
	var dryRun, strict bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start the Samar daemon to sync between Real and Shadow workspaces",
		Long: "Create a shadow workspace for the project in the current directory, and\n" +
			"keep it in sync with the project until interrupted. Point your AI agent\n" +
			"at the shadow workspace. The shadow workspace is deleted on exit.",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(dryRun, strict, cmd.Flags().Changed("strict")); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false,
		"Simulate shadow creation without copying files")
	cmd.Flags().BoolVarP(&strict, "strict", "s", false,
		"Strict Mode: Instantly delete any secrets created in the Shadow Workspace")
	return cmd
}

func run(dryRun, strictFlag, strictFlagSet bool) error {
	ws, err := util.LoadWorkspace()
	if err != nil {
		return errors.WithContext(err, "load workspace")
	}

	if err := util.EnsureInitialized(ws.Root, stdout); err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintln(stdout, goterm.Bold(goterm.Color("Samar Dry Run Mode", goterm.MAGENTA)))
		builder := ws.NewMirror(mirror.WithReporter(mirror.TerminalReporter(stdout)))
		if err := builder.Initialize(true); err != nil {
			return errors.WithContext(err, "simulate shadow workspace")
		}
		fmt.Fprintln(stdout, goterm.Color(separator, goterm.BLACK))
		fmt.Fprintln(stdout, goterm.Color("Done. No files were moved.", goterm.MAGENTA))
		return nil
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	builder := ws.NewMirror()
	if err := builder.Initialize(false); err != nil {
		builder.Cleanup()
		return errors.WithContext(err, "create shadow workspace")
	}

	strict := util.ResolveStrict(ws.Project, strictFlag, strictFlagSet)
	engine := shadowSync.NewEngine(ws.Root, builder.Path(), ws.Rules, builder, strict)
	if err := engine.Start(); err != nil {
		engine.Stop()
		builder.Cleanup()
		return errors.WithContext(err, "start sync")
	}

	log.WithField("heavyDirs", ws.Rules.HeavyDirectories()).Debug("Heavy directories are linked")
	fmt.Fprintln(stdout, goterm.Color("Shadow Workspace Ready!", goterm.GREEN))
	fmt.Fprintln(stdout, goterm.Color(separator, goterm.BLACK))
	fmt.Fprintf(stdout, "Real Path:   %s\n", ws.Root)
	fmt.Fprintf(stdout, "Shadow Path: %s\n", goterm.Color(builder.Path(), goterm.YELLOW))
	fmt.Fprintln(stdout, goterm.Color(separator, goterm.BLACK))
	fmt.Fprintln(stdout, goterm.Color("Point your AI Agent to the Shadow Path above.", goterm.CYAN))

	waitForShutdown()

	fmt.Fprintln(stdout, goterm.Color("\nStopping Samar...", goterm.YELLOW))
	engine.Stop()
	builder.Cleanup()
	fmt.Fprintln(stdout, goterm.Color("Bye!", goterm.GREEN))
	return nil
}
