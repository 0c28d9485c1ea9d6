package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIgnoreFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/workspace", 0755))

	created, err := EnsureIgnoreFile("/workspace")
	require.NoError(t, err)
	assert.True(t, created)

	contents, err := afero.ReadFile(fs, "/workspace/.samarignore")
	require.NoError(t, err)
	assert.Equal(t, DefaultIgnoreFile, string(contents))

	// A second call leaves the user's edits alone.
	require.NoError(t, afero.WriteFile(fs, "/workspace/.samarignore", []byte("*.log\n"), 0644))
	created, err = EnsureIgnoreFile("/workspace")
	require.NoError(t, err)
	assert.False(t, created)

	contents, err = afero.ReadFile(fs, "/workspace/.samarignore")
	require.NoError(t, err)
	assert.Equal(t, "*.log\n", string(contents))
}
