package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		mainVersion string
		exp         string
	}{
		{
			name:        "LinkerFlag",
			version:     "v0.2.0",
			mainVersion: "v0.1.0",
			exp:         "v0.2.0",
		},
		{
			name:        "GoInstall",
			version:     EmptyValue,
			mainVersion: "v0.1.0",
			exp:         "v0.1.0",
		},
		{
			name:        "LocalBuild",
			version:     EmptyValue,
			mainVersion: "(devel)",
			exp:         EmptyValue,
		},
	}

	defer func() {
		Version = EmptyValue
		readBuildInfo = debug.ReadBuildInfo
	}()
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			Version = test.version
			readBuildInfo = func() (*debug.BuildInfo, bool) {
				return &debug.BuildInfo{Main: debug.Module{Version: test.mainVersion}}, true
			}
			assert.Equal(t, test.exp, Get())
		})
	}
}
