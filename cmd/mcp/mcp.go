package mcp

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/samar/cmd/util"
	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/protocol"
	shadowSync "github.com/sidkik/samar/pkg/sync"
)

// Mocked out for unit testing.
var (
	// stdout carries the JSON-RPC stream, so all human readable output goes
	// to stderr.
	stderr io.Writer = os.Stderr

	serve = func(s *protocol.Server) error {
		return s.ServeStdio()
	}

	stdinIsTerminal = func() bool {
		return terminal.IsTerminal(int(os.Stdin.Fd()))
	}
)

// New creates a new `mcp` command.
func New() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the Samar MCP Server (for AI Agents)",
		Long: "Create a shadow workspace for the project in the current directory, keep\n" +
			"it in sync, and describe it to an AI agent over the Model Context\n" +
			"Protocol on stdin and stdout.",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(strict, cmd.Flags().Changed("strict")); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&strict, "strict", "s", false,
		"Strict Mode: Instantly delete any secrets created in the Shadow Workspace")
	return cmd
}

func run(strictFlag, strictFlagSet bool) error {
	log.SetOutput(stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ws, err := util.LoadWorkspace()
	if err != nil {
		return errors.WithContext(err, "load workspace")
	}

	if err := util.EnsureInitialized(ws.Root, stderr); err != nil {
		return err
	}

	builder := ws.NewMirror()
	if err := builder.Initialize(false); err != nil {
		builder.Cleanup()
		return errors.WithContext(err, "create shadow workspace")
	}
	defer builder.Cleanup()

	strict := util.ResolveStrict(ws.Project, strictFlag, strictFlagSet)
	engine := shadowSync.NewEngine(ws.Root, builder.Path(), ws.Rules, builder, strict)
	if err := engine.Start(); err != nil {
		engine.Stop()
		return errors.WithContext(err, "start sync")
	}
	defer engine.Stop()

	if stdinIsTerminal() {
		log.Warn("samar mcp speaks JSON-RPC on stdin, and is meant to be " +
			"launched by an AI agent rather than run interactively.")
	}
	log.WithField("shadow", builder.Path()).Info("Samar MCP Server running on stdio...")
	if err := serve(protocol.New(engine)); err != nil {
		return errors.WithContext(err, "serve")
	}
	return nil
}
