package mcp

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/samar/pkg/config"
	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/protocol"
)

func TestRun(t *testing.T) {
	root, parent := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.ProjectConfigName),
		[]byte("strict: true\nmirrorParent: "+parent+"\n"), 0644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	defer os.Chdir(wd)

	var out bytes.Buffer
	stderr = &out
	defer func() {
		stderr = os.Stderr
		log.SetOutput(os.Stderr)
	}()

	origServe, origIsTerminal := serve, stdinIsTerminal
	defer func() { serve, stdinIsTerminal = origServe, origIsTerminal }()
	stdinIsTerminal = func() bool { return true }

	var served bool
	serve = func(s *protocol.Server) error {
		served = true
		entries, err := filepath.Glob(filepath.Join(parent, "samar-*"))
		require.NoError(t, err)
		assert.Len(t, entries, 2, "expected a mirror and its lease")
		return errors.New("stdin closed")
	}

	err = run(false, false)
	assert.EqualError(t, err, "serve: stdin closed")
	assert.True(t, served)
	assert.Contains(t, out.String(), config.IgnoreFileName)
	assert.Contains(t, out.String(), "meant to be launched by an AI agent")

	// The mirror is removed once the server exits.
	entries, err := filepath.Glob(filepath.Join(parent, "samar-*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
