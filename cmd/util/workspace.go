package util

import (
	"fmt"
	"io"
	"os"

	"github.com/buger/goterm"

	"github.com/sidkik/samar/pkg/config"
	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/mirror"
	"github.com/sidkik/samar/pkg/rules"
)

// Mocked out for unit testing.
var getWorkingDirectory = os.Getwd

// Workspace is the workspace in the current directory, along with its
// settings.
type Workspace struct {
	Root    string
	Project config.Project
	Rules   *rules.Evaluator
}

// LoadWorkspace loads the rules and project config for the workspace in the
// current directory.
func LoadWorkspace() (Workspace, error) {
	root, err := getWorkingDirectory()
	if err != nil {
		return Workspace{}, errors.WithContext(err, "get working directory")
	}

	project, err := config.ParseProject(root)
	if err != nil {
		return Workspace{}, errors.WithContext(err, "parse project config")
	}

	evaluator := rules.New(root)
	for _, name := range project.HeavyDirs {
		evaluator.AddHeavyDirectory(name)
	}
	return Workspace{Root: root, Project: project, Rules: evaluator}, nil
}

// NewMirror returns a mirror builder for the workspace, in the mirror parent
// directory from the project config.
func (ws Workspace) NewMirror(opts ...mirror.Option) *mirror.Builder {
	if ws.Project.MirrorParent != "" {
		opts = append([]mirror.Option{mirror.WithParent(ws.Project.MirrorParent)}, opts...)
	}
	return mirror.New(ws.Root, ws.Rules, opts...)
}

// MirrorParent returns the directory that mirrors of the workspace are
// created in.
func (ws Workspace) MirrorParent() string {
	if ws.Project.MirrorParent != "" {
		return ws.Project.MirrorParent
	}
	return os.TempDir()
}

// EnsureInitialized writes the default ignore file if the workspace doesn't
// have one yet. An existing file is left untouched without printing
// anything.
func EnsureInitialized(root string, out io.Writer) error {
	created, err := config.EnsureIgnoreFile(root)
	if err != nil {
		return errors.NewFriendlyError("Failed to create %s:\n%s", config.IgnoreFileName, err)
	}
	if created {
		fmt.Fprintln(out, goterm.Color(
			fmt.Sprintf("Created %s with smart defaults.", config.IgnoreFileName), goterm.GREEN))
	}
	return nil
}

// ResolveStrict returns whether strict mode is on. The command line flag
// takes precedence over the project config when it's set explicitly.
func ResolveStrict(project config.Project, flagValue, flagSet bool) bool {
	if flagSet {
		return flagValue
	}
	return project.Strict
}
