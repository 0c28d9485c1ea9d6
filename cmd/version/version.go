package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/samar/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of Samar.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("samar version: %s\n", version.Get())
		},
	}
}
