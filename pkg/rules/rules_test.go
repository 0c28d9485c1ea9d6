package rules

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExcluded(t *testing.T) {
	gitignore := "# build output\n*.log\n/docs/internal\ncoverage/\noutput/\n!output/keep.txt\n"
	samarignore := "!keep.log\n!secret.pem\n!.env\ntmp*\n!coverage/summary.txt\n"

	tests := []struct {
		name  string
		path  string
		isDir bool
		exp   bool
	}{
		{name: "Root", path: "/ws", isDir: true, exp: false},
		{name: "OutsideRoot", path: "/other/.env", exp: false},
		{name: "PlainFile", path: "/ws/src/main.go", exp: false},
		{name: "EnvFile", path: "/ws/.env", exp: true},
		{name: "NestedEnvFile", path: "/ws/services/api/.env.local", exp: true},
		{name: "PemReincludedByUser", path: "/ws/secret.pem", exp: true},
		{name: "EnvReincludedByUser", path: "/ws/config/.env", exp: true},
		{name: "SSHKey", path: "/ws/id_rsa", exp: true},
		{name: "SSHPubKey", path: "/ws/keys/id_rsa.pub", exp: true},
		{name: "Certificate", path: "/ws/certs/client.p12", exp: true},
		{name: "GitDir", path: "/ws/.git", isDir: true, exp: true},
		{name: "InsideGitDir", path: "/ws/.git/HEAD", exp: true},
		{name: "OwnIgnoreFile", path: "/ws/.samarignore", exp: true},
		{name: "ProjectConfig", path: "/ws/.samar.yaml", exp: true},
		{name: "GitignoreGlob", path: "/ws/logs/app.log", exp: true},
		{name: "CustomNegation", path: "/ws/keep.log", exp: false},
		{name: "AnchoredDir", path: "/ws/docs/internal/plan.md", exp: true},
		{name: "AnchoredDirElsewhere", path: "/ws/src/docs/internal", isDir: true, exp: false},
		{name: "DirOnlyPatternOnDir", path: "/ws/coverage", isDir: true, exp: true},
		{name: "DirOnlyPatternOnFile", path: "/ws/coverage", isDir: false, exp: false},
		{name: "InsideDirOnlyPattern", path: "/ws/coverage/index.html", exp: true},
		{name: "CustomPattern", path: "/ws/tmp-output.txt", exp: true},
		{name: "RelativePath", path: "nested/.env", exp: true},
		{name: "NegationInsideExcludedDir", path: "/ws/output/keep.txt", exp: true},
		{name: "CustomNegationInsideExcludedDir", path: "/ws/coverage/summary.txt", exp: true},
		{name: "NegationOnlyAppliesToParent", path: "/ws/src/output.txt", exp: false},
	}

	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/.gitignore", []byte(gitignore), 0644))
	require.NoError(t, afero.WriteFile(fs, "/ws/.samarignore", []byte(samarignore), 0644))
	evaluator := New("/ws")

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, evaluator.Match(test.path, test.isDir))
		})
	}
}

func TestIsExcludedStatsPath(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/.gitignore", []byte("cache/\n"), 0644))
	require.NoError(t, fs.MkdirAll("/ws/a/cache", 0755))
	require.NoError(t, afero.WriteFile(fs, "/ws/b/cache", []byte("file"), 0644))
	evaluator := New("/ws")

	assert.True(t, evaluator.IsExcluded("/ws/a/cache"))
	assert.False(t, evaluator.IsExcluded("/ws/b/cache"))

	// Missing paths are treated as files.
	assert.False(t, evaluator.IsExcluded("/ws/c/cache"))
	assert.True(t, evaluator.IsExcluded("/ws/c/.env"))
}

func TestNoIgnoreFiles(t *testing.T) {
	fs = afero.NewMemMapFs()
	evaluator := New("/ws")

	assert.True(t, evaluator.IsExcluded("/ws/.env"))
	assert.False(t, evaluator.IsExcluded("/ws/app.log"))
}

func TestUnreadableIgnoreFile(t *testing.T) {
	fs = afero.NewOsFs()
	defer func() { fs = afero.NewOsFs() }()

	root := t.TempDir()
	// Reading a directory fails, which simulates an unreadable file.
	require.NoError(t, os.Mkdir(filepath.Join(root, ".gitignore"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".samarignore"), []byte("*.tmp\n"), 0644))

	hook := logtest.NewGlobal()
	defer hook.Reset()

	evaluator := New(root)
	assert.True(t, evaluator.IsExcluded(filepath.Join(root, "scratch.tmp")))

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == log.WarnLevel && entry.Data["file"] == ".gitignore" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning about the unreadable .gitignore")
}

func TestHeavyDirectories(t *testing.T) {
	fs = afero.NewMemMapFs()
	evaluator := New("/ws")

	for _, name := range DefaultHeavyDirs {
		assert.True(t, evaluator.IsHeavy(name), name)
	}
	assert.False(t, evaluator.IsHeavy("src"))
	assert.False(t, evaluator.IsHeavy("web/node_modules"))

	evaluator.AddHeavyDirectory(".gradle")
	assert.True(t, evaluator.IsHeavy(".gradle"))
	assert.Contains(t, evaluator.HeavyDirectories(), ".gradle")

	// Heavy sets aren't shared between evaluators.
	assert.False(t, New("/ws").IsHeavy(".gradle"))
}

func TestParsePatterns(t *testing.T) {
	patterns := ParsePatterns([]byte("# comment\n\n*.log  \r\n   \n!keep.log\n"))
	assert.Len(t, patterns, 2)
}
