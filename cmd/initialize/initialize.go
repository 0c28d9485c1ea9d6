package initialize

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/samar/cmd/util"
	"github.com/sidkik/samar/pkg/config"
	"github.com/sidkik/samar/pkg/errors"
)

// Mocked out for unit testing.
var (
	stdout              io.Writer = os.Stdout
	getWorkingDirectory           = os.Getwd
)

// New creates a new `init` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Samar configuration in the current project",
		Long: fmt.Sprintf("Write a %s with smart defaults to the current directory.\n"+
			"An existing file is left untouched.", config.IgnoreFileName),
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	root, err := getWorkingDirectory()
	if err != nil {
		return errors.WithContext(err, "get working directory")
	}
	return util.EnsureInitialized(root, stdout)
}
