package config

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/samar/pkg/errors"
)

const (
	// InitialProjectConfigVersion is the first version of the project
	// config. Config files that do not specify a version will default to
	// this version.
	InitialProjectConfigVersion = "v1alpha1"

	// SupportedProjectConfigVersion is the supported version of the project
	// config of the current Samar binary.
	SupportedProjectConfigVersion = "v1alpha1"
)

// Project contains the optional per-workspace settings stored in
// `.samar.yaml`.
type Project struct {
	Version string `json:"version,omitempty"`

	// Strict enables strict mode unless overridden on the command line.
	Strict bool `json:"strict,omitempty"`

	// HeavyDirs are extra directory names that are linked rather than
	// copied into the mirror.
	HeavyDirs []string `json:"heavyDirs,omitempty"`

	// MirrorParent is the directory mirrors are created in. Defaults to the
	// system temp directory.
	MirrorParent string `json:"mirrorParent,omitempty"`
}

func (p Project) getVersion() string {
	return p.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseProject parses the project config in the workspace `root`. A missing
// config file isn't an error; the defaults are returned instead.
func ParseProject(root string) (Project, error) {
	path := filepath.Join(root, ProjectConfigName)
	config := Project{Version: InitialProjectConfigVersion}
	if err := parseConfig(path, &config, SupportedProjectConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Project{Version: InitialProjectConfigVersion}, nil
		}
		return Project{}, errors.WithContext(err, "parse")
	}

	if config.MirrorParent != "" {
		parent, err := homedirExpand(config.MirrorParent)
		if err != nil {
			return Project{}, errors.WithContext(err, "expand mirror parent")
		}

		// Evaluate relative paths relative to the workspace.
		if !filepath.IsAbs(parent) {
			parent = filepath.Join(root, parent)
		}
		config.MirrorParent = filepath.Clean(parent)
	}

	for _, name := range config.HeavyDirs {
		if name == "" || filepath.Base(name) != name {
			return Project{}, errors.NewFriendlyError(
				"Invalid heavy directory %q in %q.\n"+
					"Heavy directories are bare directory names, such as "+
					"\"node_modules\", not paths.", name, path)
		}
	}
	return config, nil
}
