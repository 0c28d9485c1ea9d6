package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/samar/cmd/initialize"
	"github.com/sidkik/samar/cmd/mcp"
	"github.com/sidkik/samar/cmd/prune"
	"github.com/sidkik/samar/cmd/status"
	"github.com/sidkik/samar/cmd/util"
	"github.com/sidkik/samar/cmd/version"
	"github.com/sidkik/samar/cmd/watch"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "SAMAR_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "samar",
		Short:        "Shadow Workspace Manager for Safe AI Agent Execution",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		initialize.New(),
		mcp.New(),
		prune.New(),
		status.New(),
		version.New(),
		watch.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
