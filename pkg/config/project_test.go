package config

import (
	"fmt"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/samar/pkg/errors"
)

func TestParseProject(t *testing.T) {
	root := "/workspace"
	path := "/workspace/.samar.yaml"

	tests := []struct {
		name      string
		input     []byte
		expConfig Project
		expError  error
	}{
		{
			name:      "Missing",
			expConfig: Project{Version: InitialProjectConfigVersion},
		},
		{
			name:  "EmptyVersion",
			input: mustMarshal(Project{Strict: true}),
			expConfig: Project{
				Version: InitialProjectConfigVersion,
				Strict:  true,
			},
		},
		{
			name: "HeavyDirs",
			input: mustMarshal(Project{
				Version:   SupportedProjectConfigVersion,
				HeavyDirs: []string{".gradle", "Pods"},
			}),
			expConfig: Project{
				Version:   SupportedProjectConfigVersion,
				HeavyDirs: []string{".gradle", "Pods"},
			},
		},
		{
			name: "RelativeMirrorParent",
			input: mustMarshal(Project{
				MirrorParent: "../mirrors",
			}),
			expConfig: Project{
				Version:      InitialProjectConfigVersion,
				MirrorParent: "/mirrors",
			},
		},
		{
			name: "HomeMirrorParent",
			input: mustMarshal(Project{
				MirrorParent: "~/mirrors",
			}),
			expConfig: Project{
				Version:      InitialProjectConfigVersion,
				MirrorParent: "/home/user/mirrors",
			},
		},
		{
			name: "IncorrectVersion",
			input: mustMarshal(Project{
				Version: "incorrect_version",
			}),
			expError: errors.WithContext(incompatibleVersionError{
				path:   path,
				exp:    SupportedProjectConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
		{
			name: "HeavyDirPath",
			input: mustMarshal(Project{
				HeavyDirs: []string{"web/node_modules"},
			}),
			expError: errors.NewFriendlyError(
				"Invalid heavy directory %q in %q.\n"+
					"Heavy directories are bare directory names, such as "+
					"\"node_modules\", not paths.", "web/node_modules", path),
		},
	}

	homedirExpand = func(p string) (string, error) {
		if len(p) > 0 && p[0] == '~' {
			return "/home/user" + p[1:], nil
		}
		return p, nil
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs = afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll(root, 0755))
			if test.input != nil {
				require.NoError(t, afero.WriteFile(fs, path, test.input, 0644))
			}

			config, err := ParseProject(root)
			assert.Equal(t, test.expError, err)
			if test.expError == nil {
				assert.Equal(t, test.expConfig, config)
			}
		})
	}
}

func TestParseProjectExtraFields(t *testing.T) {
	fs = afero.NewMemMapFs()
	input := []byte(fmt.Sprintf("version: %s\nextra: fields", SupportedProjectConfigVersion))
	require.NoError(t, afero.WriteFile(fs, "/workspace/.samar.yaml", input, 0644))

	_, err := ParseProject("/workspace")
	require.Error(t, err)
	_, ok := errors.RootCause(err).(errors.FriendlyError)
	assert.True(t, ok, "extra fields should produce a friendly error")
}

func mustMarshal(intf interface{}) []byte {
	yamlBytes, err := yaml.Marshal(intf)
	if err != nil {
		panic(err)
	}
	return yamlBytes
}
